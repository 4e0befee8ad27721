package store

import (
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// SaveRawBlocks persists an ordered list of decoded blocks. It first rewinds
// the database to the lowest height present in the batch (guaranteeing a
// clean prefix for idempotent re-ingest of any overlapping range), then
// inserts every row across blocks, blockchain, transactions,
// transaction_meta, transaction_inputs, transaction_outputs, and
// transaction_paymentids in a single transaction. Returned heights are
// sorted ascending.
func (s *BlockchainDB) SaveRawBlocks(blocks []*models.Block) (heights []uint64, hashes []string, err error) {
	if len(blocks) == 0 {
		return nil, nil, nil
	}

	sorted := make([]*models.Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })

	lowest := sorted[0].Height
	if err := s.Rewind(lowest); err != nil {
		return nil, nil, errors.Wrapf(err, "rewinding to %d before saving raw blocks", lowest)
	}

	tx, err := s.beginTx()
	if err != nil {
		return nil, nil, err
	}
	defer tx.rollbackUnlessCommitted()

	blocksRows := make([][]interface{}, 0, len(sorted))
	blockchainRows := make([][]interface{}, 0, len(sorted))
	var transactionsRows, transactionMetaRows, inputRows, outputRows, paymentIDRows [][]interface{}

	for _, b := range sorted {
		blocksRows = append(blocksRows, []interface{}{b.Hash, b.Data})
		blockchainRows = append(blockchainRows, []interface{}{b.Height, b.Hash, b.Timestamp.UTC().Unix()})

		for _, t := range b.Transactions {
			coinbase := 0
			if t.Coinbase {
				coinbase = 1
			}
			transactionsRows = append(transactionsRows, []interface{}{t.Hash, b.Hash, coinbase, t.Data})
			transactionMetaRows = append(transactionMetaRows, []interface{}{t.Hash, t.Fee, t.Amount, t.Size})

			for _, in := range t.Inputs {
				if in.Type != models.InputKey {
					continue // coinbase inputs are excluded
				}
				offsets, err := json.Marshal(in.KeyOffsets)
				if err != nil {
					return nil, nil, errors.Wrap(err, "encoding keyOffsets")
				}
				inputRows = append(inputRows, []interface{}{t.Hash, in.KeyImage, in.Amount, string(offsets)})
			}

			for _, out := range t.Outputs {
				outputRows = append(outputRows, []interface{}{t.Hash, out.Index, out.Amount, out.OutputKey, nil})
			}

			if t.PaymentID != "" {
				paymentIDRows = append(paymentIDRows, []interface{}{t.Hash, t.PaymentID})
			}
		}

		heights = append(heights, b.Height)
		hashes = append(hashes, b.Hash)
	}

	inserts := []struct {
		table string
		cols  []string
		rows  [][]interface{}
	}{
		{"blocks", []string{"hash", "data"}, blocksRows},
		{"blockchain", []string{"height", "hash", "utctimestamp"}, blockchainRows},
		{"transactions", []string{"hash", "block_hash", "coinbase", "data"}, transactionsRows},
		{"transaction_meta", []string{"hash", "fee", "amount", "size"}, transactionMetaRows},
		{"transaction_inputs", []string{"hash", "keyImage", "amount", "keyOffsets"}, inputRows},
		{"transaction_outputs", []string{"hash", "idx", "amount", "outputKey", "globalIdx"}, outputRows},
		{"transaction_paymentids", []string{"hash", "paymentId"}, paymentIDRows},
	}
	for _, ins := range inserts {
		if err := s.insertRowsChunked(tx.tx, ins.table, ins.cols, ins.rows); err != nil {
			return nil, nil, errors.Wrapf(err, "inserting into %s", ins.table)
		}
	}

	if err := tx.commit(); err != nil {
		return nil, nil, err
	}
	return heights, hashes, nil
}

// insertRowsChunked issues one bulk INSERT per chunkSize-row chunk of rows.
func (s *BlockchainDB) insertRowsChunked(tx *sql.Tx, table string, cols []string, rows [][]interface{}) error {
	for _, span := range chunks(len(rows)) {
		chunk := rows[span[0]:span[1]]
		stmt := s.buildBulkInsert(table, cols, len(chunk))
		args := make([]interface{}, 0, len(chunk)*len(cols))
		for _, row := range chunk {
			args = append(args, row...)
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

// HeightFromHash looks up the height of a known block hash.
func (s *BlockchainDB) HeightFromHash(hash string) (uint64, error) {
	var height uint64
	err := s.db.QueryRow("SELECT height FROM blockchain WHERE hash = "+s.placeholder(1), hash).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "looking up height from hash")
	}
	return height, nil
}

// HashFromHeight looks up the hash stored at a given height.
func (s *BlockchainDB) HashFromHeight(height uint64) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM blockchain WHERE height = "+s.placeholder(1), height).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "looking up hash from height")
	}
	return hash, nil
}

// HaveGenesis reports whether height 0 has been ingested.
func (s *BlockchainDB) HaveGenesis() (bool, error) {
	_, err := s.HashFromHeight(0)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GenesisHash returns the hash stored at height 0.
func (s *BlockchainDB) GenesisHash() (string, error) {
	return s.HashFromHeight(0)
}

// TopHeight returns the highest height currently stored, or (0, ErrNotFound)
// on an empty chain.
func (s *BlockchainDB) TopHeight() (uint64, error) {
	var height sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(height) FROM blockchain").Scan(&height)
	if err != nil {
		return 0, errors.Wrap(err, "looking up top height")
	}
	if !height.Valid {
		return 0, ErrNotFound
	}
	return uint64(height.Int64), nil
}

// BlockExists reports whether a block with the given hash is already
// mirrored, along with its height and non-coinbase transaction count, used
// by the offload worker's idempotent short-circuit.
func (s *BlockchainDB) BlockExists(hash string) (exists bool, height uint64, txnCount uint32, err error) {
	height, err = s.HeightFromHash(hash)
	if err == ErrNotFound {
		return false, 0, 0, nil
	}
	if err != nil {
		return false, 0, 0, err
	}
	var count uint32
	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE block_hash = "+s.placeholder(1)+" AND coinbase = 0",
		hash).Scan(&count)
	if err != nil {
		return false, 0, 0, errors.Wrap(err, "counting transactions")
	}
	return true, height, count, nil
}

// ErrNotFound is returned by read paths when the requested row does not
// exist.
var ErrNotFound = errors.New("not found")
