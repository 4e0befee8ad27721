// Command blockchain-daemon runs the synchronization engine and the
// mirrored-read HTTP API as a long-running process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/collector"
	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/httpapi"
	"github.com/TurtlePay/blockchain-database/internal/interrupt"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
	"github.com/TurtlePay/blockchain-database/internal/upstream"
)

var log = logger.Get(logger.TagMain)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg := config.MustLoad()
	if err := logger.ParseAndSetDebugLevels(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %s\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to database: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("error closing database: %s", err)
		}
	}()

	up := upstream.New(cfg)
	dec := codec.NewAdapter(codec.PlaceholderDecoder{})

	coll := collector.New(db, up, dec)
	if err := coll.Init(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error starting synchronization engine: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := coll.Stop(); err != nil {
			log.Errorf("error stopping collector: %s", err)
		}
	}()

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := httpapi.NewServer(db, httpAddr)
	shutdownHTTP := server.Start()
	defer shutdownHTTP()
	log.Infof("mirrored read API listening on %s", httpAddr)

	<-interrupt.Listen()
	log.Infof("shutting down")
}
