package chat

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/observability/logging"
)

// backgroundTaskTimeout bounds a single persistence task so a stuck store
// cannot hold the response open forever.
const backgroundTaskTimeout = 30 * time.Second

// taskGroup tracks the persistence work of one request. Tasks run detached
// from the request context, so a client disconnect does not cancel them.
// A failing task is logged and counted; it never fails the group.
type taskGroup struct {
	g       errgroup.Group
	ctx     context.Context
	log     *logging.Logger
	metrics *metrics.Exporter

	mu sync.Mutex
	// last is closed when the most recent ordered task has settled.
	last chan struct{}
}

func newTaskGroup(ctx context.Context, log *logging.Logger, m *metrics.Exporter) *taskGroup {
	return &taskGroup{ctx: context.WithoutCancel(ctx), log: log, metrics: m}
}

// Go runs fn in the background without ordering. It may be called from a
// running task; Wait still covers it.
func (t *taskGroup) Go(name string, fn func(ctx context.Context) error) {
	t.g.Go(func() error {
		t.run(name, fn)
		return nil
	})
}

// GoOrdered runs fn in the background once every previously ordered task has
// settled, so message appends keep their order.
func (t *taskGroup) GoOrdered(name string, fn func(ctx context.Context) error) {
	t.mu.Lock()
	prev := t.last
	done := make(chan struct{})
	t.last = done
	t.mu.Unlock()

	t.g.Go(func() error {
		defer close(done)
		if prev != nil {
			<-prev
		}
		t.run(name, fn)
		return nil
	})
}

// Wait blocks until every task has settled.
func (t *taskGroup) Wait() {
	_ = t.g.Wait()
}

func (t *taskGroup) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(t.ctx, backgroundTaskTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		return fn(ctx)
	}()

	t.metrics.RecordBackgroundTask(name, err == nil)
	if err != nil {
		t.log.Warn(ctx, "chat.task_failed", "task", name, "error", err)
	}
}
