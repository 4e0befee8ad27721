package store

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

// dbTx wraps a *sql.Tx with a rollback-unless-committed finalizer, the same
// rollback-unless-closed discipline dbaccess-style transaction helpers use.
type dbTx struct {
	tx        *sql.Tx
	committed bool
}

func (s *BlockchainDB) beginTx() (*dbTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &dbTx{tx: tx}, nil
}

func (t *dbTx) commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	t.committed = true
	return nil
}

func (t *dbTx) rollbackUnlessCommitted() {
	if !t.committed {
		_ = t.tx.Rollback()
	}
}

// chunks splits rows into groups of at most chunkSize, so callers can issue
// one bulk INSERT per chunk instead of one per row.
func chunks(n int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += chunkSize {
		end := i + chunkSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
	}
	return out
}

// buildBulkInsert builds a multi-row INSERT statement for the given table,
// columns, and row count, using the backend's placeholder syntax.
func (s *BlockchainDB) buildBulkInsert(table string, cols []string, rows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < len(cols); c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.placeholder(n))
			n++
		}
		sb.WriteString(")")
	}
	return sb.String()
}
