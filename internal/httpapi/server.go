// Package httpapi exposes the BlockchainDB read surface over HTTP, mirroring
// the upstream daemon's own HTTP surface so wallets and explorers can point
// at the mirror instead of the live node.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

var log = logger.Get(logger.TagHTTP)

const (
	routeParamHeightOrHash = "heightOrHash"
	routeParamHash         = "hash"
)

// Server wraps the storage layer with a gorilla/mux router.
type Server struct {
	db     *store.BlockchainDB
	router *mux.Router
	http   *http.Server
}

// NewServer builds the router over db.
func NewServer(db *store.BlockchainDB, addr string) *Server {
	s := &Server{db: db, router: mux.NewRouter()}
	s.addRoutes()
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine and returns a shutdown
// function the caller defers.
func (s *Server) Start() func() {
	panics.GoroutineWrapperFunc(log)(func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %s", err)
		}
	})
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(ctx)
	}
}

type handlerFunc func(routeParams map[string]string, queryParams map[string][]string, body io.Reader) (interface{}, *handlerError)

func (s *Server) makeHandler(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, hErr := h(mux.Vars(r), r.URL.Query(), r.Body)
		if hErr != nil {
			log.Warnf("http: %s", hErr.Message)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(hErr.Code)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": hErr.ClientMessage})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) addRoutes() {
	s.router.HandleFunc("/info", s.makeHandler(s.getInfo)).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/peers", s.makeHandler(s.getPeers)).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/fee", s.makeHandler(s.getFee)).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/sync", s.makeHandler(s.postSync)).Methods(http.MethodPost)

	s.router.HandleFunc("/block/headers/{"+routeParamHeightOrHash+"}", s.makeHandler(s.getBlockHeaders)).Methods(http.MethodGet)
	s.router.HandleFunc("/block/{"+routeParamHeightOrHash+"}", s.makeHandler(s.getBlock)).Methods(http.MethodGet)
	s.router.HandleFunc("/indexes", s.makeHandler(s.getIndexes)).Methods(http.MethodGet)
	s.router.HandleFunc("/random_outputs", s.makeHandler(s.postRandomOutputs)).Methods(http.MethodPost)

	s.router.HandleFunc("/transaction_pool", s.makeHandler(s.getTransactionPool)).Methods(http.MethodGet)
	s.router.HandleFunc("/transaction_pool/changes", s.makeHandler(s.postTransactionPoolChanges)).Methods(http.MethodPost)
	s.router.HandleFunc("/transaction/{"+routeParamHash+"}", s.makeHandler(s.getTransaction)).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions/status", s.makeHandler(s.postTransactionsStatus)).Methods(http.MethodPost)

	// Mutating upstream RPCs fail with "method not available" on a
	// read-only mirror.
	s.router.HandleFunc("/block_template", s.makeHandler(s.methodNotAvailable)).Methods(http.MethodPost)
	s.router.HandleFunc("/submit_block", s.makeHandler(s.methodNotAvailable)).Methods(http.MethodPost)
	s.router.HandleFunc("/submit_transaction", s.makeHandler(s.methodNotAvailable)).Methods(http.MethodPost)
}

func (s *Server) methodNotAvailable(_ map[string]string, _ map[string][]string, _ io.Reader) (interface{}, *handlerError) {
	return nil, newHandlerError(http.StatusNotImplemented, store.ErrMethodNotAvailable.Error())
}
