package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

func seedChain(t *testing.T, db *BlockchainDB, n uint64) {
	t.Helper()
	blocks := make([]*models.Block, 0, n)
	for h := uint64(0); h < n; h++ {
		blocks = append(blocks, sampleBlock(h, hashFor(h)))
	}
	_, _, err := db.SaveRawBlocks(blocks)
	require.NoError(t, err)
}

func TestHashesForSyncEmptyDatabase(t *testing.T) {
	db := newTestDB(t)
	hashes, err := db.HashesForSync()
	require.NoError(t, err)
	require.Empty(t, hashes)
}

func TestHashesForSyncIncludesTopConsecutiveAndGenesis(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 40)

	hashes, err := db.HashesForSync()
	require.NoError(t, err)
	require.NotEmpty(t, hashes)

	// The top 11 consecutive heights (39 down to 29) must all be present.
	for h := uint64(29); h <= 39; h++ {
		require.Contains(t, hashes, hashFor(h))
	}
	// Genesis is always included.
	require.Contains(t, hashes, hashFor(0))

	seen := make(map[string]struct{})
	for _, h := range hashes {
		_, dup := seen[h]
		require.False(t, dup, "duplicate checkpoint hash %s", h)
		seen[h] = struct{}{}
	}
}

func TestGetSyncHeightResumesAfterLatestCheckpoint(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 10)

	resume, err := db.GetSyncHeight([]string{hashFor(4), hashFor(7)}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(8), resume)
}

func TestGetSyncHeightPrefersExplicitHeightWhenHigher(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 10)

	resume, err := db.GetSyncHeight([]string{hashFor(2)}, 9, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(9), resume)
}

func TestRawSyncReturnsPageAndSyncedFlag(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 5)

	result, err := db.RawSync(nil, 0, 0, false, 3)
	require.NoError(t, err)
	require.False(t, result.Synced)
	require.Len(t, result.Blocks, 3)
	require.Equal(t, uint64(0), result.Blocks[0].Height)
	require.Equal(t, uint64(2), result.Blocks[2].Height)
	require.Len(t, result.Blocks[0].TransactionBlobs, 1) // coinbase excluded

	result, err = db.RawSync(nil, 5, 0, false, 3)
	require.NoError(t, err)
	require.True(t, result.Synced)
	require.Empty(t, result.Blocks)
	require.NotNil(t, result.TopInfo)
	require.Equal(t, uint64(4), result.TopInfo.Height)
}

func TestBlockHeadersDescendingPage(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 5)

	headers := make([]models.BlockHeader, 0, 5)
	for h := uint64(0); h < 5; h++ {
		headers = append(headers, models.BlockHeader{Hash: hashFor(h), TransactionsCount: 2})
	}
	require.NoError(t, db.SaveBlocksMeta(headers))

	got, err := db.BlockHeaders(4)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, uint64(4), got[0].Height)
	require.Equal(t, uint64(0), got[4].Height)
}

func TestIndexesRangeFilter(t *testing.T) {
	db := newTestDB(t)
	seedChain(t, db, 3)

	indexes := TransactionGlobalIndexes{
		"tx-" + hashFor(1): {100, 101},
	}
	require.NoError(t, db.SaveOutputGlobalIndexes(indexes))

	got, err := db.Indexes(1, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 101}, got["tx-"+hashFor(1)])

	got, err = db.Indexes(2, 2)
	require.NoError(t, err)
	require.NotContains(t, got, "tx-"+hashFor(1))
}
