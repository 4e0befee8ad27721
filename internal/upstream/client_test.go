package upstream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	// Client builds its own scheme://host:port from config, so point
	// NodeHost/NodePort at the test server's listener address.
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return New(&config.Config{NodeHost: host, NodePort: port})
}

func TestInfoDecodesJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"height": float64(10)})
	})

	info, err := c.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(10), info["height"])
}

func TestRawTransactionPoolDecodesHexBlobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"transactions": []string{"deadbeef"}})
	})

	blobs, err := c.RawTransactionPool(context.Background())
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, blobs[0])
}

func TestRawSyncReportsPerItemHeight(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"synced": false,
			"items": []map[string]interface{}{
				{"height": float64(7), "block": map[string]interface{}{"block": "aa"}, "transactions": []string{"bb"}},
			},
		})
	})

	synced, blocks, err := c.RawSync(context.Background(), nil, 0, 0, false, 10)
	require.NoError(t, err)
	require.False(t, synced)
	require.Len(t, blocks, 1)
	require.Equal(t, uint64(7), blocks[0].Height)
	require.Equal(t, []byte{0xaa}, blocks[0].BlockBlob)
}

func TestPostReturnsErrorOnNonOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	_, err := c.Info(context.Background())
	require.Error(t, err)
}
