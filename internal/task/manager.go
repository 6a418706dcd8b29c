// Package task manages the lifecycle of the goroutines a session owns.
//
// The session controller starts its protocol loop and any auxiliary workers
// through a Manager so that shutdown is deterministic: Stop cancels every
// task's context, Wait blocks until all of them have returned.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/labgate/go-astm/logger"
)

// Func is a single iteration of a managed task. It returns true to keep
// running, false to stop the goroutine.
type Func func() bool

// Manager owns a group of goroutines sharing one cancellation context.
//
// When the context is cancelled (via Stop or the parent context), all
// running tasks are signalled to stop. Wait blocks until every goroutine
// has terminated and then re-arms the manager for reuse.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
	taskMu sync.RWMutex // protects task creation during Wait()
}

// NewManager creates a Manager with the given parent context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// Context returns the manager's current cancellation context.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start launches a goroutine that repeatedly invokes fn until fn returns
// false or the manager is stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	ctx := mgr.Context()

	select {
	case <-ctx.Done():
		return fmt.Errorf("task: manager already stopped, cannot start %s", name)
	default:
	}

	mgr.logger.Debug("task: start", "name", name)

	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("task: panic", "name", name, "panic", r)
			}

			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task: terminated", "name", name, "task_count", mgr.Count())
		}()

		for {
			select {
			case <-mgr.Context().Done():
				return
			default:
				if !fn() {
					return
				}
			}
		}
	}()

	return nil
}

// Stop signals all running goroutines to terminate.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until all goroutines have terminated, then re-creates the
// cancellation context so the manager can be reused.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count returns the number of currently running goroutines.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
