package collector

import (
	"sync"
	"time"

	"github.com/TurtlePay/blockchain-database/internal/panics"
)

// tickInterval is the fixed period shared by the info, pool, and sync
// tickers.
const tickInterval = 5000 * time.Millisecond

// pausableTicker runs fn on every tick of a time.Ticker, but skips a tick
// that would overlap a still-running invocation of fn: before fn starts the
// ticker marks itself paused, and re-enables at the end (finally-style), so
// ticks of the same kind never overlap one another. Different
// pausableTickers run concurrently with respect to each other.
type pausableTicker struct {
	name string
	fn   func()

	mu     sync.Mutex
	paused bool
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newPausableTicker(name string, fn func()) *pausableTicker {
	return &pausableTicker{name: name, fn: fn}
}

// start registers the ticker and begins firing every tickInterval.
func (t *pausableTicker) start() {
	t.ticker = time.NewTicker(tickInterval)
	t.stopCh = make(chan struct{})
	t.wg.Add(1)
	panics.GoroutineWrapperFunc(log)(t.loop)
}

func (t *pausableTicker) loop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			t.ticker.Stop()
			return
		case <-t.ticker.C:
			t.runOnce()
		}
	}
}

func (t *pausableTicker) runOnce() {
	t.mu.Lock()
	if t.paused {
		t.mu.Unlock()
		return
	}
	t.paused = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.paused = false
		t.mu.Unlock()
	}()

	t.fn()
}

// destroy stops the ticker and waits for any in-flight tick to finish.
func (t *pausableTicker) destroy() {
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	t.wg.Wait()
}
