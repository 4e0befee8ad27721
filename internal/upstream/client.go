// Package upstream implements the narrow HTTP adapter the synchronization
// engine and offload worker use to talk to the upstream daemon.
//
// The upstream daemon's wire format (plain JSON POSTs to fixed endpoints) is
// an external collaborator; the sync engine and offload worker hold a
// *Client directly, and this package is the concrete adapter for that
// collaborator. Plain JSON-over-HTTP RPC needs
// nothing beyond net/http directly (see DESIGN.md for the justification).
package upstream

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/logger"
)

var log = logger.Get(logger.TagUpstream)

// clientTimeout is the fixed upstream RPC timeout.
const clientTimeout = 120 * time.Second

// Client is the HTTP adapter to the upstream daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client from a config, honoring NODE_HOST/NODE_PORT/NODE_SSL.
func New(cfg *config.Config) *Client {
	scheme := "http"
	if cfg.NodeSSL {
		scheme = "https"
	}
	return &Client{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.NodeHost, cfg.NodePort),
		http:    &http.Client{Timeout: clientTimeout},
	}
}

func (c *Client) post(ctx context.Context, path string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	log.Tracef("POST %s", path)

	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, "encoding request to %s", path)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building request to %s", path)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "calling %s", path)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response from %s", path)
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.Errorf("%s returned status %d: %s", path, httpResp.StatusCode, string(data))
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return errors.Wrapf(err, "decoding response from %s", path)
	}
	return nil
}

// Info fetches the live /info response.
func (c *Client) Info(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.post(ctx, "/info", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Peers fetches the live /peers response.
func (c *Client) Peers(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.post(ctx, "/peers", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// rawTransactionPoolResponse mirrors the upstream /get_raw_transaction_pool
// reply shape.
type rawTransactionPoolResponse struct {
	Transactions []hexBlob `json:"transactions"`
}

type hexBlob []byte

func (h *hexBlob) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "decoding hex blob")
	}
	*h = decoded
	return nil
}

// RawTransactionPool fetches every raw transaction blob currently pooled
// upstream.
func (c *Client) RawTransactionPool(ctx context.Context) ([][]byte, error) {
	var out rawTransactionPoolResponse
	if err := c.post(ctx, "/get_raw_transaction_pool", struct{}{}, &out); err != nil {
		return nil, err
	}
	blobs := make([][]byte, len(out.Transactions))
	for i, b := range out.Transactions {
		blobs[i] = b
	}
	return blobs, nil
}

// rawBlockResponse mirrors the upstream /get_block reply shape used for a
// single raw block fetch).
type rawBlockResponse struct {
	BlockBlob    hexBlob   `json:"blob"`
	Transactions []hexBlob `json:"tx_hashes_as_hex"`
	TxBlobs      []hexBlob `json:"txs_as_hex"`
}

// RawBlock fetches one raw block (block blob + transaction blobs) by height
// or hash.
func (c *Client) RawBlock(ctx context.Context, heightOrHash interface{}) (blockBlob []byte, txBlobs [][]byte, err error) {
	var out rawBlockResponse
	req := map[string]interface{}{"hash": heightOrHash}
	if err := c.post(ctx, "/get_block", req, &out); err != nil {
		return nil, nil, err
	}
	blobs := make([][]byte, len(out.TxBlobs))
	for i, b := range out.TxBlobs {
		blobs[i] = b
	}
	return out.BlockBlob, blobs, nil
}

// indexesResponse mirrors the upstream global-output-index range RPC.
type indexesResponse struct {
	Indexes map[string][]uint64 `json:"o_indexes"`
}

// Indexes fetches global output indexes for every transaction in [start,
// end].
func (c *Client) Indexes(ctx context.Context, start, end uint64) (map[string][]uint64, error) {
	var out indexesResponse
	req := map[string]uint64{"start_height": start, "end_height": end}
	if err := c.post(ctx, "/get_indexes", req, &out); err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

// headerEntry mirrors one element of the bulk headers RPC reply.
type headerEntry struct {
	Hash                         string  `json:"hash"`
	PrevHash                     string  `json:"prev_hash"`
	BaseReward                   uint64  `json:"base_reward"`
	Difficulty                   uint64  `json:"difficulty"`
	MajorVersion                 uint32  `json:"major_version"`
	MinorVersion                 uint32  `json:"minor_version"`
	Nonce                        uint32  `json:"nonce"`
	Size                         uint32  `json:"block_size"`
	AlreadyGeneratedCoins        uint64  `json:"already_generated_coins"`
	AlreadyGeneratedTransactions uint64  `json:"already_generated_transactions"`
	Reward                       uint64  `json:"reward"`
	SizeMedian                   uint32  `json:"size_median"`
	TotalFeeAmount               uint64  `json:"total_fee_amount"`
	TransactionsCumulativeSize   uint32  `json:"transactions_cumulative_size"`
	TransactionsCount            uint32  `json:"transactions_count"`
	Orphan                       bool    `json:"orphan_status"`
	Penalty                      float64 `json:"penalty"`
	Height                       uint64  `json:"height"`
	Timestamp                    int64   `json:"timestamp"`
}

type blockHeadersResponse struct {
	Headers []headerEntry `json:"headers"`
}

// BlockHeaders fetches up to 30 headers descending from heightDesc in one
// bulk call.
func (c *Client) BlockHeaders(ctx context.Context, heightDesc uint64) ([]Header, error) {
	var out blockHeadersResponse
	req := map[string]uint64{"height": heightDesc}
	if err := c.post(ctx, "/getblockheaders", req, &out); err != nil {
		return nil, err
	}
	headers := make([]Header, len(out.Headers))
	for i, h := range out.Headers {
		headers[i] = Header(h)
	}
	return headers, nil
}

// Header is the wire shape of a single block header, re-exported under this
// package so callers don't need to reach into an unexported type.
type Header headerEntry

// SyncBlock is one decoded-ready item of a RawSync reply: the raw block blob
// plus its transaction blobs, tagged with the height the upstream reports it
// at (the bulk sync RPC always reports height per item so the caller never
// has to infer it from position).
type SyncBlock struct {
	Height           uint64
	BlockBlob        []byte
	TransactionBlobs [][]byte
}

// rawSyncResponse mirrors the upstream bulk sync RPC reply.
type rawSyncResponse struct {
	Synced bool `json:"synced"`
	Items  []struct {
		Height uint64 `json:"height"`
		Block  struct {
			BlockBlob hexBlob `json:"block"`
		} `json:"block"`
		Transactions []hexBlob `json:"transactions"`
	} `json:"items"`
	TopBlockHeight uint64 `json:"height"`
}

// RawSync calls the bulk checkpoint-negotiated sync RPC.
func (c *Client) RawSync(ctx context.Context, checkpoints []string, height uint64, timestamp int64, skipCoinbaseOnly bool, count int) (synced bool, blocks []SyncBlock, err error) {
	req := map[string]interface{}{
		"block_hashes":    checkpoints,
		"start_height":    height,
		"start_timestamp": timestamp,
		"no_miner_tx":     skipCoinbaseOnly,
		"count":           count,
	}
	var out rawSyncResponse
	if err := c.post(ctx, "/getblocks.bin", req, &out); err != nil {
		return false, nil, err
	}

	blocks = make([]SyncBlock, len(out.Items))
	for i, item := range out.Items {
		txs := make([][]byte, len(item.Transactions))
		for j, t := range item.Transactions {
			txs[j] = t
		}
		blocks[i] = SyncBlock{Height: item.Height, BlockBlob: item.Block.BlockBlob, TransactionBlobs: txs}
	}
	return out.Synced, blocks, nil
}

