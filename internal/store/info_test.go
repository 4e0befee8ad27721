package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/models"
)

func TestPeersNotFoundBeforeFirstSave(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Peers()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndReadPeers(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SavePeers(map[string]interface{}{"peer_count": float64(3)}))

	peers, err := db.Peers()
	require.NoError(t, err)
	require.Equal(t, float64(3), peers["peer_count"])
}

func TestInfoOverlaysLocalTopBlock(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SaveInformation(map[string]interface{}{"networkHeight": float64(5)}))

	_, _, err := db.SaveRawBlocks([]*models.Block{sampleBlock(0, "genesis")})
	require.NoError(t, err)
	require.NoError(t, db.SaveBlocksMeta([]models.BlockHeader{{Hash: "genesis", Difficulty: 300}}))

	info, err := db.Info()
	require.NoError(t, err)
	require.Equal(t, true, info["isCacheApi"])
	require.Equal(t, uint64(0), info["height"])
	require.Equal(t, uint64(300), info["difficulty"])
	require.Equal(t, false, info["synced"]) // height 0 != reported networkHeight 4 (live 5 minus one)
	require.Equal(t, int64(1), info["transactionsSize"])
}

func TestFeeReflectsConfig(t *testing.T) {
	db, err := Open(&config.Config{Backend: config.BackendSQLite, SQLitePath: ":memory:", FeeAddress: "abc", FeeAmount: 7})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	addr, amount := db.Fee()
	require.Equal(t, "abc", addr)
	require.Equal(t, uint64(7), amount)
}
