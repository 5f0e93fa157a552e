// Package events runs side effects that must happen after an order is
// committed, such as confirmation messages and payment initiation, on a
// small pool of background workers.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrDispatcherClosed = errors.New("dispatcher is closed")

type task struct {
	name string
	run  func(ctx context.Context) error
}

type Dispatcher struct {
	tasks   chan task
	timeout time.Duration
	log     *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize.
// Each task gets its own context bounded by taskTimeout.
func NewDispatcher(workers, queueSize int, taskTimeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		tasks:   make(chan task, queueSize),
		timeout: taskTimeout,
		log:     logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker(i)
	}
	return d
}

// Enqueue hands fn to the workers. It blocks while the queue is full, until
// ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.tasks <- task{name: name, run: fn}:
		return nil
	case <-ctx.Done():
		d.log.Warnf("Dispatcher: Dropped task %s: %v", name, ctx.Err())
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for t := range d.tasks {
		d.execute(id, t)
	}
}

func (d *Dispatcher) execute(worker int, t task) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	entry := d.log.WithFields(logrus.Fields{"task": t.name, "worker": worker})
	defer func() {
		if p := recover(); p != nil {
			entry.Errorf("Dispatcher: Task panicked: %v", p)
		}
	}()

	start := time.Now()
	if err := t.run(ctx); err != nil {
		entry.Warnf("Dispatcher: Task failed: %v", err)
		return
	}
	entry.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Dispatcher: Task done")
}

// Close stops accepting tasks and waits for queued ones to finish or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("Dispatcher: All tasks drained")
		return nil
	case <-ctx.Done():
		d.log.Warn("Dispatcher: Shutdown deadline hit before queue drained")
		return ctx.Err()
	}
}
