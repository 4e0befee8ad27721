// Command blockchain-consistency checks the mirror for blocks missing
// their block_meta row and optionally repairs them by rewinding to the
// lowest inconsistent height.
package main

import (
	"fmt"
	"os"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

var log = logger.Get(logger.TagMain)

func main() {
	defer panics.HandlePanic(log, nil)

	repair := len(os.Args) > 1 && os.Args[1] == "-repair"

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

	if repair {
		if err := db.RecoverConsistency(); err != nil {
			fmt.Fprintf(os.Stderr, "error repairing consistency: %s\n", err)
			os.Exit(1)
		}
		log.Infof("consistency repaired")
		return
	}

	ok, inconsistent, err := db.CheckConsistency()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error checking consistency: %s\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "found %d inconsistent block(s):\n", len(inconsistent))
		for _, h := range inconsistent {
			fmt.Fprintln(os.Stderr, h)
		}
		os.Exit(1)
	}

	log.Infof("mirror is consistent")
}
