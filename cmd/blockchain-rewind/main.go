// Command blockchain-rewind deletes the mirror's suffix from a given height
// upward, for manual repair outside of the automatic consistency recovery
// built into the collector.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

var log = logger.Get(logger.TagMain)

func main() {
	defer panics.HandlePanic(log, nil)

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <height>\n", os.Args[0])
		os.Exit(1)
	}
	height, err := strconv.ParseUint(os.Args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid height %q: %s\n", os.Args[1], err)
		os.Exit(1)
	}

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

	if err := db.Rewind(height); err != nil {
		fmt.Fprintf(os.Stderr, "error rewinding to height %d: %s\n", height, err)
		os.Exit(1)
	}

	log.Infof("rewound mirror to height %d", height)
}
