package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

func TestCheckConsistencyCleanDatabase(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)
	require.NoError(t, db.SaveBlocksMeta([]models.BlockHeader{{Hash: "genesis", TransactionsCount: 2}}))

	ok, inconsistent, err := db.CheckConsistency()
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, inconsistent)
}

func TestCheckConsistencyFlagsMissingMeta(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis"), sampleBlock(1, "block1")})
	require.NoError(t, err)
	// Only the genesis block gets its header persisted, leaving block1
	// without a block_meta row.
	require.NoError(t, db.SaveBlocksMeta([]models.BlockHeader{{Hash: "genesis", TransactionsCount: 2}}))

	ok, inconsistent, err := db.CheckConsistency()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"block1"}, inconsistent)
}

func TestRecoverConsistencyRewindsToLowestInconsistentHeight(t *testing.T) {
	db := newTestDB(t)

	blocks := []*models.Block{sampleBlock(0, "genesis"), sampleBlock(1, "block1"), sampleBlock(2, "block2")}
	_, _, err := db.SaveRawBlocks(blocks)
	require.NoError(t, err)
	require.NoError(t, db.SaveBlocksMeta([]models.BlockHeader{{Hash: "genesis", TransactionsCount: 2}}))
	// block1 and block2 are missing block_meta rows.

	require.NoError(t, db.RecoverConsistency())

	top, err := db.TopHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(0), top)

	ok, _, err := db.CheckConsistency()
	require.NoError(t, err)
	require.True(t, ok)
}
