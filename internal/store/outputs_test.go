package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

func TestRandomIndexesOutOfRange(t *testing.T) {
	db := newTestDB(t)
	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)
	require.NoError(t, db.SaveOutputGlobalIndexes(TransactionGlobalIndexes{
		"tx-genesis": {5, 6},
	}))

	_, err = db.RandomIndexes([]uint64{250}, 10)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRandomIndexesDrawsDistinctOutputs(t *testing.T) {
	db := newTestDB(t)

	blocks := make([]*models.Block, 0, 5)
	for h := uint64(0); h < 5; h++ {
		blocks = append(blocks, sampleBlock(h, hashFor(h)))
	}
	_, _, err := db.SaveRawBlocks(blocks)
	require.NoError(t, err)

	indexes := make(TransactionGlobalIndexes)
	for h := uint64(0); h < 5; h++ {
		indexes["tx-"+hashFor(h)] = []uint64{h * 2, h*2 + 1}
	}
	require.NoError(t, db.SaveOutputGlobalIndexes(indexes))

	result, err := db.RandomIndexes([]uint64{250}, 3)
	require.NoError(t, err)
	outs := result[250]
	require.Len(t, outs, 3)

	seen := make(map[uint64]struct{})
	for i, o := range outs {
		_, dup := seen[o.GlobalIdx]
		require.False(t, dup)
		seen[o.GlobalIdx] = struct{}{}
		if i > 0 {
			require.Greater(t, o.GlobalIdx, outs[i-1].GlobalIdx)
		}
	}
}
