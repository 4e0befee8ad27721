package httpapi

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/store"
)

func (s *Server) getInfo(_ map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	info, err := s.db.Info()
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return info, nil
}

func (s *Server) getPeers(_ map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	peers, err := s.db.Peers()
	if err == store.ErrNotFound {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return peers, nil
}

func (s *Server) getFee(_ map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	address, amount := s.db.Fee()
	return map[string]interface{}{"address": address, "amount": amount}, nil
}

func (s *Server) getBlock(routeParams map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	block, err := s.db.Block(routeParams[routeParamHeightOrHash])
	if err == store.ErrNotFound {
		return nil, newNotFoundError("block not found")
	}
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return block, nil
}

func (s *Server) getBlockHeaders(routeParams map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	height, err := strconv.ParseUint(routeParams[routeParamHeightOrHash], 10, 64)
	if err != nil {
		return nil, newBadRequestError("heightOrHash must be a decimal height for /block/headers")
	}
	headers, err := s.db.BlockHeaders(height)
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return headers, nil
}

func (s *Server) getIndexes(_ map[string]string, queryParams map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	start, err := parseUintParam(queryParams, "start")
	if err != nil {
		return nil, newBadRequestError(err.Error())
	}
	end, err := parseUintParam(queryParams, "end")
	if err != nil {
		return nil, newBadRequestError(err.Error())
	}
	indexes, err := s.db.Indexes(start, end)
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return indexes, nil
}

type randomOutputsRequest struct {
	Amounts []uint64 `json:"amounts"`
	Count   int      `json:"count"`
}

func (s *Server) postRandomOutputs(_ map[string]string, _ map[string][]string, body io.Reader) (interface{}, *handlerError) {
	var req randomOutputsRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, newBadRequestError("invalid request body")
	}
	out, err := s.db.RandomIndexes(req.Amounts, req.Count)
	if err == store.ErrOutOfRange {
		return nil, newBadRequestError(err.Error())
	}
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return out, nil
}

func (s *Server) getTransaction(routeParams map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	tx, err := s.db.Transaction(routeParams[routeParamHash])
	if err == store.ErrNotFound {
		return nil, newNotFoundError("transaction not found")
	}
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return tx, nil
}

func (s *Server) getTransactionPool(_ map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	txns, err := s.db.TransactionPool()
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return txns, nil
}

type transactionPoolChangesRequest struct {
	LastKnownBlock string   `json:"lastKnownBlockHash"`
	Transactions   []string `json:"transactionHashes"`
}

func (s *Server) postTransactionPoolChanges(_ map[string]string, _ map[string][]string, body io.Reader) (interface{}, *handlerError) {
	var req transactionPoolChangesRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, newBadRequestError("invalid request body")
	}
	added, deleted, err := s.db.TransactionPoolChanges(req.LastKnownBlock, req.Transactions)
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return map[string]interface{}{"added": added, "deleted": deleted}, nil
}

type transactionsStatusRequest struct {
	Hashes []string `json:"transactionHashes"`
}

func (s *Server) postTransactionsStatus(_ map[string]string, _ map[string][]string, body io.Reader) (interface{}, *handlerError) {
	var req transactionsStatusRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, newBadRequestError("invalid request body")
	}
	status, err := s.db.TransactionsStatus(req.Hashes)
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return status, nil
}

type syncRequest struct {
	Checkpoints      []string `json:"block_hashes"`
	Height           uint64   `json:"start_height"`
	Timestamp        int64    `json:"start_timestamp"`
	SkipCoinbaseOnly bool     `json:"no_miner_tx"`
	Count            int      `json:"count"`
}

func (s *Server) postSync(_ map[string]string, _ map[string][]string, body io.Reader) (interface{}, *handlerError) {
	var req syncRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, newBadRequestError("invalid request body")
	}
	blocks, synced, err := s.db.Sync(req.Checkpoints, req.Height, req.Timestamp, req.SkipCoinbaseOnly, req.Count)
	if err != nil {
		return nil, newInternalError(err.Error())
	}
	return map[string]interface{}{"blocks": blocks, "synced": synced}, nil
}

func parseUintParam(queryParams map[string][]string, name string) (uint64, error) {
	values := queryParams[name]
	if len(values) != 1 {
		return 0, errors.Errorf("missing required query parameter: %s", name)
	}
	return strconv.ParseUint(values[0], 10, 64)
}
