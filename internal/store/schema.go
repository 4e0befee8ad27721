package store

import (
	"github.com/pkg/errors"
)

// columnTypes maps the database-adapter-delegated column kinds (hash-sized
// string, variable blob, 32-bit unsigned, 64-bit unsigned) to each
// backend's concrete SQL type.
type columnTypes struct {
	hash   string // fixed-width hex hash string
	blob   string // variable-length binary blob
	uint32 string
	uint64 string
	text   string
}

func (s *BlockchainDB) columnTypes() columnTypes {
	switch s.backend {
	case "mysql":
		return columnTypes{hash: "CHAR(64)", blob: "LONGBLOB", uint32: "INT UNSIGNED", uint64: "BIGINT UNSIGNED", text: "TEXT"}
	case "postgres":
		return columnTypes{hash: "CHAR(64)", blob: "BYTEA", uint32: "BIGINT", uint64: "NUMERIC(20,0)", text: "TEXT"}
	default: // sqlite3
		return columnTypes{hash: "TEXT", blob: "BLOB", uint32: "INTEGER", uint64: "INTEGER", text: "TEXT"}
	}
}

// Init issues the CREATE TABLE statements for every mirror table inside
// one transaction. It is idempotent: re-running it against an
// existing schema is a no-op.
func (s *BlockchainDB) Init() error {
	c := s.columnTypes()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			hash ` + c.hash + ` NOT NULL PRIMARY KEY,
			data ` + c.blob + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blockchain (
			height ` + c.uint64 + ` NOT NULL PRIMARY KEY,
			hash ` + c.hash + ` NOT NULL,
			utctimestamp ` + c.uint64 + ` NOT NULL,
			FOREIGN KEY (hash) REFERENCES blocks(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS block_meta (
			hash ` + c.hash + ` NOT NULL PRIMARY KEY,
			prevHash ` + c.hash + ` NOT NULL,
			baseReward ` + c.uint64 + ` NOT NULL,
			difficulty ` + c.uint64 + ` NOT NULL,
			majorVersion ` + c.uint32 + ` NOT NULL,
			minorVersion ` + c.uint32 + ` NOT NULL,
			nonce ` + c.uint32 + ` NOT NULL,
			size ` + c.uint32 + ` NOT NULL,
			alreadyGeneratedCoins ` + c.uint64 + ` NOT NULL,
			alreadyGeneratedTransactions ` + c.uint64 + ` NOT NULL,
			reward ` + c.uint64 + ` NOT NULL,
			sizeMedian ` + c.uint32 + ` NOT NULL,
			totalFeeAmount ` + c.uint64 + ` NOT NULL,
			transactionsCumulativeSize ` + c.uint32 + ` NOT NULL,
			transactionsCount ` + c.uint32 + ` NOT NULL,
			orphan INTEGER NOT NULL DEFAULT 0,
			penalty ` + c.text + `,
			FOREIGN KEY (hash) REFERENCES blocks(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			hash ` + c.hash + ` NOT NULL PRIMARY KEY,
			block_hash ` + c.hash + ` NOT NULL,
			coinbase INTEGER NOT NULL DEFAULT 0,
			data ` + c.blob + ` NOT NULL,
			FOREIGN KEY (block_hash) REFERENCES blocks(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_meta (
			hash ` + c.hash + ` NOT NULL PRIMARY KEY,
			fee ` + c.uint64 + ` NOT NULL,
			amount ` + c.uint64 + ` NOT NULL,
			size ` + c.uint32 + ` NOT NULL,
			FOREIGN KEY (hash) REFERENCES transactions(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_inputs (
			hash ` + c.hash + ` NOT NULL,
			keyImage ` + c.hash + ` NOT NULL,
			amount ` + c.uint64 + ` NOT NULL,
			keyOffsets ` + c.text + `,
			PRIMARY KEY (keyImage),
			FOREIGN KEY (hash) REFERENCES transactions(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_outputs (
			hash ` + c.hash + ` NOT NULL,
			idx ` + c.uint32 + ` NOT NULL,
			amount ` + c.uint64 + ` NOT NULL,
			outputKey ` + c.hash + ` NOT NULL,
			globalIdx ` + c.uint64 + `,
			PRIMARY KEY (hash, idx),
			FOREIGN KEY (hash) REFERENCES transactions(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_paymentids (
			hash ` + c.hash + ` NOT NULL,
			paymentId ` + c.hash + ` NOT NULL,
			PRIMARY KEY (hash, paymentId),
			FOREIGN KEY (hash) REFERENCES transactions(hash) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_pool (
			hash ` + c.hash + ` NOT NULL PRIMARY KEY,
			fee ` + c.uint64 + ` NOT NULL,
			size ` + c.uint32 + ` NOT NULL,
			amount ` + c.uint64 + ` NOT NULL,
			data ` + c.blob + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS information (
			idx ` + c.text + ` NOT NULL PRIMARY KEY,
			data ` + c.blob + ` NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning schema transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "creating schema (statement: %s)", firstLine(stmt))
		}
	}

	// SQLite foreign-key enforcement is a per-connection session setting,
	// not DDL; Open sets it via the "_foreign_keys=on" DSN parameter on the
	// single pooled connection instead of here, so it applies to every
	// statement this BlockchainDB ever issues, not just this transaction.

	return errors.Wrap(tx.Commit(), "committing schema transaction")
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
