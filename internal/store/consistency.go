package store

import (
	"github.com/pkg/errors"
)

// CheckConsistency returns blocks.hash for every block whose joined
// block_meta.size is NULL, meaning the block was persisted without its
// matching header metadata.
func (s *BlockchainDB) CheckConsistency() (ok bool, inconsistent []string, err error) {
	rows, err := s.db.Query(`
		SELECT b.hash FROM blocks b
		LEFT JOIN block_meta bm ON bm.hash = b.hash
		WHERE bm.size IS NULL`)
	if err != nil {
		return false, nil, errors.Wrap(err, "checking consistency")
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return false, nil, err
		}
		inconsistent = append(inconsistent, hash)
	}
	if err := rows.Err(); err != nil {
		return false, nil, err
	}

	return len(inconsistent) == 0, inconsistent, nil
}

// RecoverConsistency runs CheckConsistency, and on failure rewinds to the
// lowest inconsistent height and re-checks, looping until the database is
// consistent. Run at daemon startup and at the top of every sync tick.
func (s *BlockchainDB) RecoverConsistency() error {
	for {
		ok, inconsistent, err := s.CheckConsistency()
		if err != nil {
			return errors.Wrap(err, "checking consistency")
		}
		if ok {
			return nil
		}

		lowest, err := s.lowestHeight(inconsistent)
		if err != nil {
			return errors.Wrap(err, "locating lowest inconsistent height")
		}

		log.Warnf("consistency check found %d inconsistent block(s), rewinding to height %d", len(inconsistent), lowest)
		if err := s.Rewind(lowest); err != nil {
			return errors.Wrapf(err, "rewinding to %d to repair consistency", lowest)
		}
	}
}

func (s *BlockchainDB) lowestHeight(hashes []string) (uint64, error) {
	var lowest uint64
	first := true
	for _, h := range hashes {
		height, err := s.HeightFromHash(h)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return 0, err
		}
		if first || height < lowest {
			lowest = height
			first = false
		}
	}
	return lowest, nil
}
