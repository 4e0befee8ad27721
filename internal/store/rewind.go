package store

import (
	"github.com/pkg/errors"
)

// Rewind deletes the suffix of the chain starting at height (inclusive).
// Foreign-key cascades clean up every dependent row. Deletions execute one
// block at a time, each in its own transaction, so a single failing delete
// can be requeued without losing progress already made.
func (s *BlockchainDB) Rewind(height uint64) error {
	hashes, err := s.hashesAtOrAbove(height)
	if err != nil {
		return errors.Wrapf(err, "listing hashes at or above height %d", height)
	}

	work := hashes
	for len(work) > 0 {
		h := work[0]
		work = work[1:]

		if err := s.deleteBlock(h); err != nil {
			log.Warnf("rewind: failed to delete block %s, requeueing: %s", h, err)
			work = append(work, h)
			continue
		}
	}
	return nil
}

func (s *BlockchainDB) hashesAtOrAbove(height uint64) ([]string, error) {
	rows, err := s.db.Query("SELECT hash FROM blockchain WHERE height >= "+s.placeholder(1)+" ORDER BY height DESC", height)
	if err != nil {
		return nil, err
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

func (s *BlockchainDB) deleteBlock(hash string) error {
	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	if _, err := tx.tx.Exec("DELETE FROM blocks WHERE hash = "+s.placeholder(1), hash); err != nil {
		return errors.Wrap(err, "deleting block row")
	}
	return tx.commit()
}
