package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func newTestServer(t *testing.T) (*Server, *store.BlockchainDB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite3")
	db, err := store.Open(&config.Config{Backend: config.BackendSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, db.Init())
	db.SetDecoder(codec.NewAdapter(fakeDecoder{}))
	t.Cleanup(func() { _ = db.Close() })
	return NewServer(db, ":0"), db
}

func TestGetInfoReturnsJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["isCacheApi"])
}

func TestGetBlockNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/block/deadbeef", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBlockByHeight(t *testing.T) {
	s, db := newTestServer(t)
	_, _, err := db.SaveRawBlocks([]*models.Block{{
		Hash: "hash-blob0", Height: 0, Timestamp: time.Unix(1700000000, 0).UTC(), Data: []byte("blob0"),
		Transactions: []models.Transaction{{Hash: "coinbase-tx", Coinbase: true, Data: []byte("cb")}},
	}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/block/0", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var block models.Block
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &block))
	require.Equal(t, "hash-blob0", block.Hash)
}

func TestPostSyncDecodesBody(t *testing.T) {
	s, db := newTestServer(t)
	_, _, err := db.SaveRawBlocks([]*models.Block{{
		Hash: "hash-blob0", Height: 0, Timestamp: time.Unix(1700000000, 0).UTC(), Data: []byte("blob0"),
	}})
	require.NoError(t, err)

	body, _ := json.Marshal(syncRequest{Count: 10})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", bytes.NewReader(body))
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["synced"])
}

func TestMutatingRoutesReturnNotImplemented(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/block_template", "/submit_block", "/submit_transaction"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte("{}")))
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotImplemented, rec.Code, "path %s", path)
	}
}

func TestRandomOutputsBadRequestOnInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/random_outputs", bytes.NewReader([]byte("not-json")))
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
