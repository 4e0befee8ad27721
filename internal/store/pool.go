package store

import (
	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

// SaveTransactionPool snapshot-replaces transaction_pool in its entirety:
// truncate, then insert every decoded pool transaction, in one transaction.
func (s *BlockchainDB) SaveTransactionPool(txns []models.Transaction) error {
	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	if _, err := tx.tx.Exec("DELETE FROM transaction_pool"); err != nil {
		return errors.Wrap(err, "truncating transaction_pool")
	}

	rows := make([][]interface{}, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []interface{}{t.Hash, t.Fee, t.Size, t.Amount, t.Data})
	}
	cols := []string{"hash", "fee", "size", "amount", "data"}
	if err := s.insertRowsChunked(tx.tx, "transaction_pool", cols, rows); err != nil {
		return errors.Wrap(err, "inserting transaction_pool rows")
	}

	return tx.commit()
}

// TransactionPoolHashes returns every hash currently in transaction_pool.
func (s *BlockchainDB) TransactionPoolHashes() ([]string, error) {
	rows, err := s.db.Query("SELECT hash FROM transaction_pool")
	if err != nil {
		return nil, errors.Wrap(err, "listing transaction_pool hashes")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// TransactionPoolChanges compares a caller-supplied list of previously-known
// pool transaction hashes against the current snapshot, returning which
// ones were added and which were dropped. lastKnownBlock is
// accepted for interface parity with the upstream node's RPC but does not
// affect the result, since pool membership is tracked independently of
// chain height.
func (s *BlockchainDB) TransactionPoolChanges(lastKnownBlock string, known []string) (added, deleted []string, err error) {
	current, err := s.TransactionPoolHashes()
	if err != nil {
		return nil, nil, err
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, h := range current {
		currentSet[h] = struct{}{}
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, h := range known {
		knownSet[h] = struct{}{}
	}

	for _, h := range current {
		if _, ok := knownSet[h]; !ok {
			added = append(added, h)
		}
	}
	for _, h := range known {
		if _, ok := currentSet[h]; !ok {
			deleted = append(deleted, h)
		}
	}
	return added, deleted, nil
}
