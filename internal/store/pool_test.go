package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

func TestSaveTransactionPoolSnapshotReplace(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveTransactionPool([]models.Transaction{
		{Hash: "a", Data: []byte("a-blob")},
		{Hash: "b", Data: []byte("b-blob")},
	}))

	hashes, err := db.TransactionPoolHashes()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, hashes)

	// A second save fully replaces the snapshot rather than appending.
	require.NoError(t, db.SaveTransactionPool([]models.Transaction{
		{Hash: "c", Data: []byte("c-blob")},
	}))

	hashes, err = db.TransactionPoolHashes()
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, hashes)
}

func TestTransactionPoolChanges(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveTransactionPool([]models.Transaction{
		{Hash: "a", Data: []byte("a-blob")},
		{Hash: "b", Data: []byte("b-blob")},
	}))

	added, deleted, err := db.TransactionPoolChanges("", []string{"b", "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, added)
	require.Equal(t, []string{"c"}, deleted)
}
