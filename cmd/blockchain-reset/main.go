// Command blockchain-reset truncates the mirror back to an empty database,
// for operators who want a full resynchronization from genesis rather than
// a targeted rewind.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/TurtlePay/blockchain-database/internal/config"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

var log = logger.Get(logger.TagMain)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg := config.MustLoad()
	if err := logger.ParseAndSetDebugLevels(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %s\n", err)
		os.Exit(1)
	}

	if !confirmed() {
		fmt.Fprintln(os.Stderr, "aborted")
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

	if err := db.Reset(); err != nil {
		fmt.Fprintf(os.Stderr, "error resetting database: %s\n", err)
		os.Exit(1)
	}

	log.Infof("mirror reset to empty state")
}

func confirmed() bool {
	if os.Getenv("FORCE") == "true" {
		return true
	}
	fmt.Fprint(os.Stderr, "this will delete every mirrored block, type \"yes\" to continue: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}
