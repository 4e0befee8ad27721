package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/models"
)

// fakeDecoder recovers the block hash from the sentinel blob format used by
// sampleBlock ("raw-block-<hash>") instead of doing any real binary parsing,
// since the binary codec itself is out of scope for this package's tests.
type fakeDecoder struct{}

func (fakeDecoder) DecodeBlock(blob []byte) (string, time.Time, error) {
	hash := strings.TrimPrefix(string(blob), "raw-block-")
	return hash, time.Unix(1700000000, 0).UTC(), nil
}

func (fakeDecoder) DecodeTransaction(blob []byte) (models.Transaction, error) {
	return models.Transaction{Hash: "decoded-" + string(blob)}, nil
}

func TestBlockAndTransactionRequireDecoder(t *testing.T) {
	db := newTestDB(t)
	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)

	_, err = db.Block("genesis")
	require.Error(t, err)

	_, err = db.Transaction("tx-genesis")
	require.Error(t, err)
}

func TestBlockDecodedRoundTrip(t *testing.T) {
	db := newTestDB(t)
	db.SetDecoder(codec.NewAdapter(fakeDecoder{}))

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)

	block, err := db.Block("genesis")
	require.NoError(t, err)
	require.Equal(t, "genesis", block.Hash)
	require.Equal(t, uint64(0), block.Height)
	require.Len(t, block.Transactions, 2)
}

func TestBlockResolvesByHeight(t *testing.T) {
	db := newTestDB(t)
	db.SetDecoder(codec.NewAdapter(fakeDecoder{}))

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)

	block, err := db.Block("0")
	require.NoError(t, err)
	require.Equal(t, "genesis", block.Hash)
}

func TestTransactionsStatusReportsChainPoolAndUnknown(t *testing.T) {
	db := newTestDB(t)
	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)

	require.NoError(t, db.SaveTransactionPool([]models.Transaction{{Hash: "pooled-tx", Data: []byte("blob")}}))

	statuses, err := db.TransactionsStatus([]string{"tx-genesis", "pooled-tx", "unknown-tx"})
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	require.True(t, statuses[0].InChain)
	require.False(t, statuses[0].InPool)
	require.Equal(t, "genesis", statuses[0].BlockHash)

	require.False(t, statuses[1].InChain)
	require.True(t, statuses[1].InPool)

	require.False(t, statuses[2].InChain)
	require.False(t, statuses[2].InPool)
}

func TestSyncDecodedRoundTrip(t *testing.T) {
	db := newTestDB(t)
	db.SetDecoder(codec.NewAdapter(fakeDecoder{}))
	seedChain(t, db, 3)

	blocks, synced, err := db.Sync(nil, 0, 0, false, 10)
	require.NoError(t, err)
	require.False(t, synced)
	require.Len(t, blocks, 3)

	blocks, synced, err = db.Sync(nil, 10, 0, false, 10)
	require.NoError(t, err)
	require.True(t, synced)
	require.Empty(t, blocks)
}
