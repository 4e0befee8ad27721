// Package store implements the BlockchainDB: the relational persistence
// layer, plus the read surface that mirrors the upstream node for
// read-only consumers.
//
// It owns exactly one concern: turning typed block/transaction/sync
// operations into SQL against whichever backend was selected at startup.
// Dynamic row shapes (column naming differs by backend: camelCase vs
// lowercase) are coalesced here so no caller has to know which driver is
// underneath.
package store

import (
	"database/sql"
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite3"
	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/logger"
)

var log = logger.Get(logger.TagStorage)

// chunkSize bounds how many value-rows a single bulk INSERT statement
// carries, to stay within statement-size limits across backends.
const chunkSize = 25

// BlockchainDB is the storage layer. It is safe for concurrent use. Each
// multi-row write runs in one *sql.Tx, except Rewind, which deletes one
// block per transaction; read paths such as Info and BlockExists issue
// several independent queries outside any transaction.
type BlockchainDB struct {
	gdb     *gorm.DB
	db      *sql.DB
	backend config.Backend
	cfg     *config.Config
	decoder *codec.Adapter
}

// SetDecoder wires the codec adapter used to decode stored raw blobs back
// into structured form for the decoded read paths (Block, Transaction,
// TransactionPool, Sync). Read paths that only ever need the raw blob
// (RawBlock, RawTransaction, RawTransactionPool, RawSync) do not require it.
func (s *BlockchainDB) SetDecoder(d *codec.Adapter) {
	s.decoder = d
}

// Open connects to the backend selected by cfg and returns a BlockchainDB
// wrapping it. It does not create the schema; call Init for that.
func Open(cfg *config.Config) (*BlockchainDB, error) {
	var dialect, dsn string
	switch cfg.Backend {
	case config.BackendMySQL:
		dialect = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case config.BackendPostgres:
		dialect = "postgres"
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
	default:
		dialect = "sqlite3"
		dsn = cfg.SQLitePath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}

	gdb, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s backend", cfg.Backend)
	}
	gdb.SingularTable(true)

	if cfg.Backend == config.BackendSQLite {
		// SQLite only supports one writer; pinning the pool to a single
		// connection also makes "_foreign_keys=on" apply to every query
		// instead of being a per-connection setting that a second pooled
		// connection could silently run without.
		gdb.DB().SetMaxOpenConns(1)
	}

	return &BlockchainDB{
		gdb:     gdb,
		db:      gdb.DB(),
		backend: cfg.Backend,
		cfg:     cfg,
	}, nil
}

// Close releases the underlying connection pool.
func (s *BlockchainDB) Close() error {
	return s.gdb.Close()
}

// Backend reports the selected driver, used by tests and diagnostics.
func (s *BlockchainDB) Backend() config.Backend {
	return s.backend
}

// placeholder returns the positional placeholder syntax for the current
// backend ("?" for MySQL/SQLite, "$1"... for Postgres).
func (s *BlockchainDB) placeholder(n int) string {
	if s.backend == config.BackendPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// col coalesces a dynamically-scanned row's column naming across backends:
// some drivers return camelCase column aliases verbatim, others lowercase
// them. Callers that scan into map[string]interface{} use this instead of
// indexing the map directly.
func col(row map[string]interface{}, names ...string) interface{} {
	for _, n := range names {
		if v, ok := row[n]; ok {
			return v
		}
	}
	return nil
}
