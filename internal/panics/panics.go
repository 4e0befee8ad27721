// Package panics centralizes goroutine panic recovery so a single bad
// tick or worker message cannot silently kill the process without a log
// line explaining why.
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/btcsuite/btclog"
)

// HandlePanic recovers a panic, logs it along with a stack trace, and exits
// the process. Intended to be deferred at the top of main and at the top of
// every spawned goroutine.
func HandlePanic(log btclog.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		log.Criticalf("fatal error: %+v", err)
		if goroutineStackTrace != nil {
			log.Criticalf("goroutine stack trace: %s", goroutineStackTrace)
		}
		log.Criticalf("stack trace: %s", debug.Stack())
		close(done)
	}()

	const timeout = 5 * time.Second
	select {
	case <-time.After(timeout):
		fmt.Fprintln(os.Stderr, "couldn't handle a fatal error, exiting")
	case <-done:
	}
	os.Exit(1)
}

// GoroutineWrapperFunc returns a function that spawns its argument in a
// goroutine with panic recovery wired to log.
func GoroutineWrapperFunc(log btclog.Logger) func(func()) {
	return func(f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			f()
		}()
	}
}
