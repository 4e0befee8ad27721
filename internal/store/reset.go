package store

import (
	"github.com/pkg/errors"
)

// Reset truncates every root table that the rest of the schema cascades
// from, returning the mirror to an empty state equivalent to a freshly
// Init'd database. transaction_pool and information carry no
// foreign keys into them, so they are truncated directly alongside blocks.
func (s *BlockchainDB) Reset() error {
	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	for _, table := range []string{"blocks", "transaction_pool", "information"} {
		if _, err := tx.tx.Exec("DELETE FROM " + table); err != nil {
			return errors.Wrapf(err, "truncating %s", table)
		}
	}
	return tx.commit()
}
