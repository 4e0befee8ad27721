package store

import (
	"database/sql"
	"strconv"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// resolveHash accepts either a hex hash or a decimal height string, matching
// the upstream node's "heightOrHash" RPC parameter convention.
func (s *BlockchainDB) resolveHash(heightOrHash string) (string, error) {
	if height, err := strconv.ParseUint(heightOrHash, 10, 64); err == nil {
		return s.HashFromHeight(height)
	}
	return heightOrHash, nil
}

func (s *BlockchainDB) rawBlockBlob(hash string) (blockBlob []byte, height uint64, err error) {
	err = s.db.QueryRow(`
		SELECT b.data, bc.height FROM blocks b
		JOIN blockchain bc ON bc.hash = b.hash
		WHERE b.hash = `+s.placeholder(1), hash).Scan(&blockBlob, &height)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading block blob")
	}
	return blockBlob, height, nil
}

// RawBlock returns the undecoded block blob and its transaction blobs for
// the given height or hash. The coinbase blob comes first; the remaining
// blobs are not sorted by their position in the block, since no position
// is stored.
func (s *BlockchainDB) RawBlock(heightOrHash string) (*models.RawBlock, error) {
	hash, err := s.resolveHash(heightOrHash)
	if err != nil {
		return nil, err
	}
	blockBlob, _, err := s.rawBlockBlob(hash)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT data FROM transactions WHERE block_hash = "+s.placeholder(1)+" ORDER BY coinbase DESC",
		hash)
	if err != nil {
		return nil, errors.Wrap(err, "reading transaction blobs")
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.RawBlock{BlockBlob: blockBlob, TransactionBlobs: blobs}, nil
}

// Block returns the fully decoded block for the given height or hash. It
// requires a decoder to have been wired via SetDecoder.
func (s *BlockchainDB) Block(heightOrHash string) (*models.Block, error) {
	if s.decoder == nil {
		return nil, errors.New("store: no codec decoder wired, call SetDecoder first")
	}
	hash, err := s.resolveHash(heightOrHash)
	if err != nil {
		return nil, err
	}
	raw, err := s.RawBlock(hash)
	if err != nil {
		return nil, err
	}
	height, err := s.HeightFromHash(hash)
	if err != nil {
		return nil, err
	}
	return s.decoder.DecodeBlock(height, *raw)
}

// RawTransaction returns the undecoded blob for a single transaction hash.
func (s *BlockchainDB) RawTransaction(hash string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM transactions WHERE hash = "+s.placeholder(1), hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading transaction blob")
	}
	return data, nil
}

// Transaction returns the fully decoded transaction for a single hash. It
// requires a decoder to have been wired via SetDecoder.
func (s *BlockchainDB) Transaction(hash string) (*models.Transaction, error) {
	if s.decoder == nil {
		return nil, errors.New("store: no codec decoder wired, call SetDecoder first")
	}
	blob, err := s.RawTransaction(hash)
	if err != nil {
		return nil, err
	}
	tx, err := s.decoder.DecodeTransaction(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding transaction %s", hash)
	}
	return &tx, nil
}

// RawTransactionPool returns every pool transaction blob, undecoded.
func (s *BlockchainDB) RawTransactionPool() ([][]byte, error) {
	rows, err := s.db.Query("SELECT data FROM transaction_pool")
	if err != nil {
		return nil, errors.Wrap(err, "reading transaction pool blobs")
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, rows.Err()
}

// TransactionPool returns the fully decoded pool contents. It requires a
// decoder to have been wired via SetDecoder.
func (s *BlockchainDB) TransactionPool() ([]models.Transaction, error) {
	if s.decoder == nil {
		return nil, errors.New("store: no codec decoder wired, call SetDecoder first")
	}
	blobs, err := s.RawTransactionPool()
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(blobs))
	for _, blob := range blobs {
		tx, err := s.decoder.DecodeTransaction(blob)
		if err != nil {
			return nil, errors.Wrap(err, "decoding pool transaction")
		}
		out = append(out, tx)
	}
	return out, nil
}

// TransactionStatus describes where a queried transaction hash was found.
type TransactionStatus struct {
	Hash      string
	InChain   bool
	InPool    bool
	BlockHash string
}

// TransactionsStatus reports, for each requested hash, whether it is
// currently mined, still pooled, or unknown to this mirror.
func (s *BlockchainDB) TransactionsStatus(hashes []string) ([]TransactionStatus, error) {
	out := make([]TransactionStatus, 0, len(hashes))
	for _, h := range hashes {
		st := TransactionStatus{Hash: h}

		var blockHash string
		err := s.db.QueryRow("SELECT block_hash FROM transactions WHERE hash = "+s.placeholder(1), h).Scan(&blockHash)
		if err == nil {
			st.InChain = true
			st.BlockHash = blockHash
		} else if err != sql.ErrNoRows {
			return nil, errors.Wrap(err, "checking chain membership")
		}

		var poolHash string
		err = s.db.QueryRow("SELECT hash FROM transaction_pool WHERE hash = "+s.placeholder(1), h).Scan(&poolHash)
		if err == nil {
			st.InPool = true
		} else if err != sql.ErrNoRows {
			return nil, errors.Wrap(err, "checking pool membership")
		}

		out = append(out, st)
	}
	return out, nil
}

// Sync is the decoded form of RawSync: same resume/range semantics, but
// every block is returned fully decoded. It requires a decoder to have been
// wired via SetDecoder.
func (s *BlockchainDB) Sync(checkpoints []string, height uint64, timestamp int64, skipCoinbaseOnly bool, count int) ([]*models.Block, bool, error) {
	if s.decoder == nil {
		return nil, false, errors.New("store: no codec decoder wired, call SetDecoder first")
	}
	raw, err := s.RawSync(checkpoints, height, timestamp, skipCoinbaseOnly, count)
	if err != nil {
		return nil, false, err
	}
	if raw.Synced {
		return nil, true, nil
	}

	blocks := make([]*models.Block, 0, len(raw.Blocks))
	for _, rb := range raw.Blocks {
		b, err := s.decoder.DecodeBlock(rb.Height, models.RawBlock{BlockBlob: rb.BlockBlob, TransactionBlobs: rb.TransactionBlobs})
		if err != nil {
			return nil, false, errors.Wrapf(err, "decoding synced block %s", rb.Hash)
		}
		blocks = append(blocks, b)
	}
	return blocks, false, nil
}
