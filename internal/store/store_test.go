package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/models"
)

// newTestDB opens an in-memory SQLite database and runs the schema
// migration. Open already pins the pool to a single connection for every
// sqlite3 backend; that matters doubly for ":memory:", whose DSN hands out
// a fresh, empty database per connection, so a second pooled connection
// would see an entirely different (unmigrated) database.
func newTestDB(t *testing.T) *BlockchainDB {
	t.Helper()
	db, err := Open(&config.Config{Backend: config.BackendSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Init())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleBlock(height uint64, hash string) *models.Block {
	return &models.Block{
		Hash:      hash,
		Height:    height,
		Timestamp: time.Unix(1700000000+int64(height), 0).UTC(),
		Data:      []byte("raw-block-" + hash),
		Transactions: []models.Transaction{
			{
				Hash:     "coinbase-" + hash,
				Coinbase: true,
				Amount:   1000,
				Size:     200,
				Data:     []byte("coinbase-blob"),
				Inputs:   []models.Input{{Type: models.InputCoinbase, BlockIndex: uint32(height)}},
				Outputs: []models.Output{
					{Type: models.OutputKey, Index: 0, Amount: 1000, OutputKey: "outkey-" + hash},
				},
			},
			{
				Hash:      "tx-" + hash,
				Coinbase:  false,
				Fee:       10,
				Amount:    500,
				Size:      300,
				PaymentID: "payment-" + hash,
				Data:      []byte("tx-blob"),
				Inputs: []models.Input{
					{Type: models.InputKey, Amount: 500, KeyImage: "keyimage-" + hash, KeyOffsets: []uint64{1, 2, 3}},
				},
				Outputs: []models.Output{
					{Type: models.OutputKey, Index: 0, Amount: 250, OutputKey: "outkey-a-" + hash},
					{Type: models.OutputKey, Index: 1, Amount: 250, OutputKey: "outkey-b-" + hash},
				},
			},
		},
	}
}

func TestInitIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Init())
	require.NoError(t, db.Init())
}

func TestSaveRawBlocksRoundTrip(t *testing.T) {
	db := newTestDB(t)

	heights, hashes, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis"), sampleBlock(1, "block1")})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, heights)
	require.Equal(t, []string{"genesis", "block1"}, hashes)

	top, err := db.TopHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(1), top)

	have, err := db.HaveGenesis()
	require.NoError(t, err)
	require.True(t, have)

	raw, err := db.RawBlock("block1")
	require.NoError(t, err)
	require.Equal(t, []byte("raw-block-block1"), raw.BlockBlob)
	require.Len(t, raw.TransactionBlobs, 2)

	exists, height, txnCount, err := db.BlockExists("block1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(1), height)
	require.Equal(t, uint32(1), txnCount)
}

func TestSaveRawBlocksReingestIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis"), sampleBlock(1, "block1")})
	require.NoError(t, err)

	// Re-ingesting a batch that overlaps the existing tip rewinds the
	// overlapping suffix first, so the result is the same as a fresh
	// ingest rather than a primary-key collision.
	_, _, err = db.SaveRawBlocks([]*models.Block{sampleBlock(1, "block1")})
	require.NoError(t, err)

	top, err := db.TopHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(1), top)
}

func TestSaveRawBlocksChunksAcrossManyRows(t *testing.T) {
	db := newTestDB(t)

	blocks := make([]*models.Block, 0, 60)
	for h := uint64(0); h < 60; h++ {
		blocks = append(blocks, sampleBlock(h, hashFor(h)))
	}
	_, _, err := db.SaveRawBlocks(blocks)
	require.NoError(t, err)

	top, err := db.TopHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(59), top)
}

func hashFor(h uint64) string {
	const hexDigits = "0123456789abcdef"
	return "h" + string(hexDigits[h%16]) + string(hexDigits[(h/16)%16])
}

func TestHeightFromHashAndHashFromHeightNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.HeightFromHash("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = db.HashFromHeight(42)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = db.TopHeight()
	require.ErrorIs(t, err, ErrNotFound)
}
