package store

import (
	"crypto/rand"
	"math/big"
	"sort"

	"github.com/pkg/errors"
)

// TransactionGlobalIndexes maps a transaction hash to its outputs' global
// indexes, ordered by output position (0-based).
type TransactionGlobalIndexes map[string][]uint64

// SaveOutputGlobalIndexes writes the globalIdx assigned to each output of
// each transaction. Every output of a key-typed output row eventually gets
// this populated within the same tick that persisted the raw block.
// All updates run in one transaction.
func (s *BlockchainDB) SaveOutputGlobalIndexes(indexes TransactionGlobalIndexes) error {
	if len(indexes) == 0 {
		return nil
	}

	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	stmt := "UPDATE transaction_outputs SET globalIdx = " + s.placeholder(1) +
		" WHERE hash = " + s.placeholder(2) + " AND idx = " + s.placeholder(3)

	for hash, idxs := range indexes {
		for pos, globalIdx := range idxs {
			if _, err := tx.tx.Exec(stmt, globalIdx, hash, pos); err != nil {
				return errors.Wrapf(err, "setting globalIdx for %s[%d]", hash, pos)
			}
		}
	}

	return tx.commit()
}

// RandomOutput is one (globalIdx, outputKey) pair returned by RandomIndexes.
type RandomOutput struct {
	GlobalIdx uint64
	OutputKey string
}

// ErrOutOfRange is returned by RandomIndexes when the requested amount does
// not have enough distinct outputs to draw from.
var ErrOutOfRange = errors.New("requested count exceeds available outputs for amount")

// RandomIndexes draws count distinct global indexes per requested amount,
// returning the (globalIdx, outputKey) pairs in ascending order per amount.
// Fails with ErrOutOfRange if maxGlobalIdx(amount) <= count for any amount.
func (s *BlockchainDB) RandomIndexes(amounts []uint64, count int) (map[uint64][]RandomOutput, error) {
	result := make(map[uint64][]RandomOutput, len(amounts))

	for _, amount := range amounts {
		var maxIdx *uint64
		err := s.db.QueryRow(
			"SELECT MAX(globalIdx) FROM transaction_outputs WHERE amount = "+s.placeholder(1),
			amount).Scan(&maxIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "looking up max globalIdx for amount %d", amount)
		}
		if maxIdx == nil || *maxIdx <= uint64(count) {
			return nil, errors.Wrapf(ErrOutOfRange, "amount %d", amount)
		}

		picked, err := distinctRandoms(*maxIdx, count)
		if err != nil {
			return nil, err
		}

		outs := make([]RandomOutput, 0, len(picked))
		for _, idx := range picked {
			var key string
			err := s.db.QueryRow(
				"SELECT outputKey FROM transaction_outputs WHERE amount = "+s.placeholder(1)+" AND globalIdx = "+s.placeholder(2),
				amount, idx).Scan(&key)
			if err != nil {
				return nil, errors.Wrapf(err, "looking up outputKey for amount %d globalIdx %d", amount, idx)
			}
			outs = append(outs, RandomOutput{GlobalIdx: idx, OutputKey: key})
		}
		sort.Slice(outs, func(i, j int) bool { return outs[i].GlobalIdx < outs[j].GlobalIdx })
		result[amount] = outs
	}

	return result, nil
}

// distinctRandoms draws n distinct uniformly-random integers in [0, max].
func distinctRandoms(max uint64, n int) ([]uint64, error) {
	seen := make(map[uint64]struct{}, n)
	out := make([]uint64, 0, n)
	upper := big.NewInt(int64(max) + 1)
	for len(out) < n {
		v, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return nil, errors.Wrap(err, "generating random index")
		}
		idx := v.Uint64()
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out, nil
}
