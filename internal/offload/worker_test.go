package offload

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/models"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

type fakeDecoder struct{}

func (fakeDecoder) DecodeBlock(blob []byte) (string, time.Time, error) {
	return "hash-" + string(blob), time.Unix(1700000000, 0).UTC(), nil
}

func (fakeDecoder) DecodeTransaction(blob []byte) (models.Transaction, error) {
	return models.Transaction{Hash: "tx-" + string(blob)}, nil
}

// newTestStore backs the store with a real SQLite file rather than
// :memory:, since this package has no access to the connection pool to pin
// it to a single connection the way internal/store's own tests do.
func newTestStore(t *testing.T) *store.BlockchainDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite3")
	db, err := store.Open(&config.Config{Backend: config.BackendSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, db.Init())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProcessPersistsNewBlock(t *testing.T) {
	db := newTestStore(t)
	w := &Worker{store: db, codec: codec.NewAdapter(fakeDecoder{})}

	reply, err := w.process(Request{Height: 0, BlockBlob: []byte("blob")})
	require.NoError(t, err)
	require.False(t, reply.AlreadyIn)
	require.Equal(t, "hash-blob", reply.Hash)

	exists, height, _, err := db.BlockExists("hash-blob")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(0), height)
}

func TestProcessShortCircuitsAlreadyIngestedBlock(t *testing.T) {
	db := newTestStore(t)
	w := &Worker{store: db, codec: codec.NewAdapter(fakeDecoder{})}

	_, err := w.process(Request{Height: 0, BlockBlob: []byte("blob")})
	require.NoError(t, err)

	reply, err := w.process(Request{Height: 0, BlockBlob: []byte("blob")})
	require.NoError(t, err)
	require.True(t, reply.AlreadyIn)
}
