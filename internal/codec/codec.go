// Package codec adapts the upstream-provided binary block/transaction
// decoder into the normalized models used by the rest of this module.
//
// The actual binary decoding of a raw block blob, its transactions,
// inputs, outputs, signatures, and payment IDs is an external collaborator
// — this package never parses bytes itself. It only wraps
// whatever RawDecoder the caller supplies with hash caching and a
// consistent error-aggregation contract across every call site.
package codec

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// RawDecoder is implemented by the external binary codec. It has no
// knowledge of heights, databases, or upstream transport; it only turns
// bytes into structured values.
type RawDecoder interface {
	// DecodeBlock parses a block blob into header-independent fields and
	// returns the block's hash.
	DecodeBlock(blob []byte) (hash string, timestamp time.Time, err error)
	// DecodeTransaction parses a single transaction blob.
	DecodeTransaction(blob []byte) (models.Transaction, error)
}

// Adapter decodes raw blocks into models.Block, caching block hashes so
// repeated decodes of the same blob are O(1) after the first.
type Adapter struct {
	decoder RawDecoder

	mu        sync.Mutex
	hashCache map[string]cachedHeader // blob -> cached hash/timestamp
}

type cachedHeader struct {
	hash      string
	timestamp time.Time
}

// PlaceholderDecoder panics on use. It lets a composition root construct an
// Adapter before the target chain's concrete binary codec is wired in,
// without silently decoding garbage.
type PlaceholderDecoder struct{}

func (PlaceholderDecoder) DecodeBlock([]byte) (string, time.Time, error) {
	panic("codec: wire a concrete RawDecoder for the target chain before decoding blocks")
}

func (PlaceholderDecoder) DecodeTransaction([]byte) (models.Transaction, error) {
	panic("codec: wire a concrete RawDecoder for the target chain before decoding transactions")
}

// NewAdapter wraps decoder with hash caching.
func NewAdapter(decoder RawDecoder) *Adapter {
	return &Adapter{
		decoder:   decoder,
		hashCache: make(map[string]cachedHeader),
	}
}

// DecodeBlock decodes a raw block (block blob + transaction blobs) at the
// given height into a models.Block. Decoding failure of any transaction
// fails the whole block load.
func (a *Adapter) DecodeBlock(height uint64, raw models.RawBlock) (*models.Block, error) {
	hash, timestamp, err := a.decodeBlockHash(raw.BlockBlob)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding block header at height %d", height)
	}

	txns := make([]models.Transaction, 0, len(raw.TransactionBlobs))
	for i, blob := range raw.TransactionBlobs {
		tx, err := a.decoder.DecodeTransaction(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding transaction %d of block %s", i, hash)
		}
		tx.Coinbase = i == 0
		txns = append(txns, tx)
	}

	return &models.Block{
		Hash:         hash,
		Height:       height,
		Timestamp:    timestamp,
		Transactions: txns,
		Data:         raw.BlockBlob,
	}, nil
}

// DecodeTransaction decodes a single transaction blob, used by read paths
// that need a decoded transaction pool entry or an individually-fetched
// transaction rather than a whole block.
func (a *Adapter) DecodeTransaction(blob []byte) (models.Transaction, error) {
	return a.decoder.DecodeTransaction(blob)
}

func (a *Adapter) decodeBlockHash(blob []byte) (string, time.Time, error) {
	key := string(blob)
	a.mu.Lock()
	cached, ok := a.hashCache[key]
	a.mu.Unlock()
	if ok {
		return cached.hash, cached.timestamp, nil
	}

	hash, timestamp, err := a.decoder.DecodeBlock(blob)
	if err != nil {
		return "", time.Time{}, err
	}

	a.mu.Lock()
	a.hashCache[key] = cachedHeader{hash: hash, timestamp: timestamp}
	a.mu.Unlock()

	return hash, timestamp, nil
}
