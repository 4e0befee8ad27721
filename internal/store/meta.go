package store

import (
	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// SaveBlocksMeta persists header fields for a set of blocks. Inputs are
// deduplicated by hash; for each remaining header this issues a DELETE on
// block_meta by hash followed by the INSERT, making the operation
// idempotent under re-ingest. All statements run in one
// transaction.
func (s *BlockchainDB) SaveBlocksMeta(headers []models.BlockHeader) error {
	if len(headers) == 0 {
		return nil
	}

	dedup := make(map[string]models.BlockHeader, len(headers))
	order := make([]string, 0, len(headers))
	for _, h := range headers {
		if _, seen := dedup[h.Hash]; !seen {
			order = append(order, h.Hash)
		}
		dedup[h.Hash] = h
	}

	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	rows := make([][]interface{}, 0, len(order))
	for _, hash := range order {
		h := dedup[hash]

		if _, err := tx.tx.Exec("DELETE FROM block_meta WHERE hash = "+s.placeholder(1), h.Hash); err != nil {
			return errors.Wrapf(err, "deleting existing block_meta for %s", h.Hash)
		}

		orphan := 0
		if h.Orphan {
			orphan = 1
		}
		rows = append(rows, []interface{}{
			h.Hash, h.PrevHash, h.BaseReward, h.Difficulty, h.MajorVersion, h.MinorVersion,
			h.Nonce, h.Size, h.AlreadyGeneratedCoins, h.AlreadyGeneratedTransactions,
			h.Reward, h.SizeMedian, h.TotalFeeAmount, h.TransactionsCumulativeSize,
			h.TransactionsCount, orphan, h.Penalty,
		})
	}

	cols := []string{
		"hash", "prevHash", "baseReward", "difficulty", "majorVersion", "minorVersion",
		"nonce", "size", "alreadyGeneratedCoins", "alreadyGeneratedTransactions",
		"reward", "sizeMedian", "totalFeeAmount", "transactionsCumulativeSize",
		"transactionsCount", "orphan", "penalty",
	}
	if err := s.insertRowsChunked(tx.tx, "block_meta", cols, rows); err != nil {
		return errors.Wrap(err, "inserting block_meta rows")
	}

	return tx.commit()
}
