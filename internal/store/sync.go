package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// TopBlockSummary carries the handful of top-block fields the mirrored
// /info response and a handful of other read paths need, without pulling in
// a full decoded block.
type TopBlockSummary struct {
	Height       uint64
	Hash         string
	Difficulty   uint64
	MajorVersion uint32
	MinorVersion uint32
	Timestamp    int64
}

// LastBlock returns a summary of the highest block currently mirrored.
func (s *BlockchainDB) LastBlock() (*TopBlockSummary, error) {
	row := s.db.QueryRow(`
		SELECT bc.height, bc.hash, bc.utctimestamp, bm.difficulty, bm.majorVersion, bm.minorVersion
		FROM blockchain bc
		LEFT JOIN block_meta bm ON bm.hash = bc.hash
		ORDER BY bc.height DESC LIMIT 1`)

	var top TopBlockSummary
	var difficulty sql.NullInt64
	var major, minor sql.NullInt64
	if err := row.Scan(&top.Height, &top.Hash, &top.Timestamp, &difficulty, &major, &minor); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "looking up last block")
	}
	top.Difficulty = uint64(difficulty.Int64)
	top.MajorVersion = uint32(major.Int64)
	top.MinorVersion = uint32(minor.Int64)
	return &top, nil
}

// HashesForSync produces the logarithmic checkpoint list used to negotiate
// a resume point with upstream: the top 11 consecutive hashes descending, then
// exponentially-increasing halving offsets below that, and always the
// genesis hash, deduplicated, descending.
func (s *BlockchainDB) HashesForSync() ([]string, error) {
	top, err := s.TopHeight()
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(height uint64) error {
		hash, err := s.HashFromHeight(height)
		if err == ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if _, dup := seen[hash]; dup {
			return nil
		}
		seen[hash] = struct{}{}
		out = append(out, hash)
		return nil
	}

	lowest := top
	for i := uint64(0); i < 11; i++ {
		if int64(top)-int64(i) < 0 {
			break
		}
		h := top - i
		if err := add(h); err != nil {
			return nil, err
		}
		lowest = h
	}

	for n := uint64(1); ; n++ {
		offset := uint64(1) << n
		if offset > lowest {
			break
		}
		height := lowest - offset
		if err := add(height); err != nil {
			return nil, err
		}
	}

	genesis, err := s.GenesisHash()
	if err == nil {
		if _, dup := seen[genesis]; !dup {
			out = append(out, genesis)
		}
	} else if err != ErrNotFound {
		return nil, err
	}

	return out, nil
}

// GetSyncHeight computes the resume point as the maximum of: 1 + the height
// of the most recent checkpoint present in blockchain, 1 + the height of the
// most recent block with utctimestamp <= timestamp (when timestamp > 0), and
// the supplied height argument. Resumes at 0 if none apply.
func (s *BlockchainDB) GetSyncHeight(checkpoints []string, height uint64, timestamp int64) (uint64, error) {
	resume := height

	if len(checkpoints) > 0 {
		placeholders := make([]string, len(checkpoints))
		args := make([]interface{}, len(checkpoints))
		for i, c := range checkpoints {
			placeholders[i] = s.placeholder(i + 1)
			args[i] = c
		}
		query := "SELECT MAX(height) FROM blockchain WHERE hash IN (" + joinPlaceholders(placeholders) + ")"
		var maxHeight sql.NullInt64
		if err := s.db.QueryRow(query, args...).Scan(&maxHeight); err != nil {
			return 0, errors.Wrap(err, "matching checkpoints")
		}
		if maxHeight.Valid && uint64(maxHeight.Int64)+1 > resume {
			resume = uint64(maxHeight.Int64) + 1
		}
	}

	if timestamp > 0 {
		var maxHeight sql.NullInt64
		err := s.db.QueryRow(
			"SELECT MAX(height) FROM blockchain WHERE utctimestamp <= "+s.placeholder(1),
			timestamp).Scan(&maxHeight)
		if err != nil {
			return 0, errors.Wrap(err, "matching timestamp")
		}
		if maxHeight.Valid && uint64(maxHeight.Int64)+1 > resume {
			resume = uint64(maxHeight.Int64) + 1
		}
	}

	return resume, nil
}

func joinPlaceholders(ps []string) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// RawSyncResult is the reply to RawSync: either a page of raw blocks
// (blockBlob + non-coinbase transaction blobs) or, when empty, a "synced"
// marker carrying the current top block.
type RawSyncResult struct {
	Blocks  []RawSyncBlock
	Synced  bool
	TopInfo *TopBlockSummary
}

// RawSyncBlock is one block entry in a RawSync reply.
type RawSyncBlock struct {
	Height           uint64
	Hash             string
	BlockBlob        []byte
	TransactionBlobs [][]byte
}

// RawSync computes the resume point via GetSyncHeight, then returns up to
// count blocks at height >= start, optionally filtered to blocks with more
// than one transaction, ordered ascending.
//
// synced is reported true exactly when the result is empty, which conflates
// "caught up" with "temporarily empty response" — that is the upstream
// contract being mirrored, not a bug introduced here.
func (s *BlockchainDB) RawSync(checkpoints []string, height uint64, timestamp int64, skipCoinbaseOnly bool, count int) (*RawSyncResult, error) {
	start, err := s.GetSyncHeight(checkpoints, height, timestamp)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT bc.height, b.hash, b.data
		FROM blocks b
		JOIN blockchain bc ON bc.hash = b.hash
		LEFT JOIN block_meta bm ON bm.hash = b.hash
		WHERE bc.height >= ` + s.placeholder(1)
	args := []interface{}{start}
	if skipCoinbaseOnly {
		query += " AND bm.transactionsCount > 1"
	}
	query += " ORDER BY bc.height ASC LIMIT " + s.placeholder(2)
	args = append(args, count)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying rawSync range")
	}
	defer rows.Close()

	var blocks []RawSyncBlock
	for rows.Next() {
		var b RawSyncBlock
		if err := rows.Scan(&b.Height, &b.Hash, &b.BlockBlob); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range blocks {
		blobs, err := s.nonCoinbaseTransactionBlobs(blocks[i].Hash)
		if err != nil {
			return nil, err
		}
		blocks[i].TransactionBlobs = blobs
	}

	if len(blocks) == 0 {
		top, err := s.LastBlock()
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		return &RawSyncResult{Synced: true, TopInfo: top}, nil
	}

	return &RawSyncResult{Blocks: blocks}, nil
}

func (s *BlockchainDB) nonCoinbaseTransactionBlobs(blockHash string) ([][]byte, error) {
	rows, err := s.db.Query(
		"SELECT data FROM transactions WHERE block_hash = "+s.placeholder(1)+" AND coinbase = 0",
		blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "querying non-coinbase transaction blobs")
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

// BlockHeaders returns up to 30 headers, descending from height, matching
// the bulk-headers RPC this mirror exposes.
func (s *BlockchainDB) BlockHeaders(heightDesc uint64) ([]models.BlockHeader, error) {
	rows, err := s.db.Query(`
		SELECT bm.hash, bm.prevHash, bm.baseReward, bm.difficulty, bm.majorVersion, bm.minorVersion,
			bm.nonce, bm.size, bm.alreadyGeneratedCoins, bm.alreadyGeneratedTransactions,
			bm.reward, bm.sizeMedian, bm.totalFeeAmount, bm.transactionsCumulativeSize,
			bm.transactionsCount, bm.orphan, bm.penalty, bc.height, bc.utctimestamp
		FROM block_meta bm
		JOIN blockchain bc ON bc.hash = bm.hash
		WHERE bc.height <= `+s.placeholder(1)+`
		ORDER BY bc.height DESC LIMIT 30`, heightDesc)
	if err != nil {
		return nil, errors.Wrap(err, "querying block headers")
	}
	defer rows.Close()

	var headers []models.BlockHeader
	for rows.Next() {
		var h models.BlockHeader
		var orphan int
		var ts int64
		if err := rows.Scan(&h.Hash, &h.PrevHash, &h.BaseReward, &h.Difficulty, &h.MajorVersion, &h.MinorVersion,
			&h.Nonce, &h.Size, &h.AlreadyGeneratedCoins, &h.AlreadyGeneratedTransactions,
			&h.Reward, &h.SizeMedian, &h.TotalFeeAmount, &h.TransactionsCumulativeSize,
			&h.TransactionsCount, &orphan, &h.Penalty, &h.Height, &ts); err != nil {
			return nil, err
		}
		h.Orphan = orphan != 0
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// Indexes returns, for every transaction whose block falls in [start, end],
// its ordered list of output global indexes.
func (s *BlockchainDB) Indexes(start, end uint64) (TransactionGlobalIndexes, error) {
	rows, err := s.db.Query(`
		SELECT o.hash, o.idx, o.globalIdx
		FROM transaction_outputs o
		JOIN transactions t ON t.hash = o.hash
		JOIN blockchain bc ON bc.hash = t.block_hash
		WHERE bc.height >= `+s.placeholder(1)+` AND bc.height <= `+s.placeholder(2)+`
		ORDER BY o.hash, o.idx ASC`, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "querying output indexes")
	}
	defer rows.Close()

	out := make(TransactionGlobalIndexes)
	for rows.Next() {
		var hash string
		var idx uint32
		var globalIdx sql.NullInt64
		if err := rows.Scan(&hash, &idx, &globalIdx); err != nil {
			return nil, err
		}
		var v uint64
		if globalIdx.Valid {
			v = uint64(globalIdx.Int64)
		}
		out[hash] = append(out[hash], v)
	}
	return out, rows.Err()
}
