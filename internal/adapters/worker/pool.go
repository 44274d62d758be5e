// Package worker runs dispatched tasks, either on a supervised goroutine pool
// or inline on the caller's goroutine.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/ports"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Observer is told how each task ended.
type Observer interface {
	ObserveTask(name string, err error, elapsed time.Duration)
	SetQueueDepth(depth int)
}

type Config struct {
	Workers   int
	QueueSize int
	Observer  Observer
}

// Pool is a bounded task queue drained by a fixed number of goroutines. It
// implements suture.Service; tasks still queued when Serve returns are
// dropped and rediscovered by the next sync cycle.
type Pool struct {
	registry
	workers  int
	queue    chan domain.Task
	observer Observer

	mu       sync.Mutex
	inflight map[string]struct{}
}

var _ ports.Dispatcher = (*Pool)(nil)

func NewPool(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	return &Pool{
		registry: newRegistry(),
		workers:  workers,
		queue:    make(chan domain.Task, size),
		observer: cfg.Observer,
		inflight: map[string]struct{}{},
	}
}

// Enqueue queues task without blocking. A task for a build that is already
// queued or running is accepted and dropped.
func (p *Pool) Enqueue(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.handler(task.Name); err != nil {
		return err
	}

	key := taskKey(task)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inflight[key]; ok {
		return nil
	}

	select {
	case p.queue <- task:
		p.inflight[key] = struct{}{}
		p.reportDepth()
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", task.Name, domain.ErrQueueFull)
	}
}

func (p *Pool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.drain(ctx)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (p *Pool) String() string {
	return "worker-pool"
}

func (p *Pool) Pending() int {
	return len(p.queue)
}

func (p *Pool) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			p.reportDepth()
			p.execute(ctx, task)
			p.mu.Lock()
			delete(p.inflight, taskKey(task))
			p.mu.Unlock()
		}
	}
}

func (p *Pool) execute(ctx context.Context, task domain.Task) {
	started := time.Now()
	err := p.run(ctx, task)
	if p.observer != nil {
		p.observer.ObserveTask(task.Name, err, time.Since(started))
	}
	if err != nil {
		logging.Warn().
			Err(err).
			Str("task", task.Name).
			Str("task_id", task.ID).
			Str("project", string(task.Project)).
			Str("build", task.Build.Key().String()).
			Msg("task failed")
	}
}

func (p *Pool) reportDepth() {
	if p.observer != nil {
		p.observer.SetQueueDepth(len(p.queue))
	}
}

func taskKey(task domain.Task) string {
	return task.Name + "|" + string(task.Project) + "|" + task.Build.Key().String()
}
