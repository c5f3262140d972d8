package services

import (
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Dispatcher runs fire-and-forget tasks, one goroutine each, with no queue and no
// limit. A panicking task is logged and does not take the process down.
type Dispatcher struct {
	mu     sync.Mutex
	pool   *pool.Pool
	closed bool
	log    *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{pool: pool.New(), log: log.Named("dispatcher")}
}

// Submit starts task in the background. It reports false after Wait was called.
func (d *Dispatcher) Submit(task func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pool.Go(func() {
		var pc panics.Catcher
		pc.Try(task)
		if r := pc.Recovered(); r != nil {
			d.log.Error("background task panicked", zap.Error(r.AsError()))
		}
	})
	return true
}

// Wait stops accepting tasks and blocks until the running ones finish.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.pool.Wait()
}
