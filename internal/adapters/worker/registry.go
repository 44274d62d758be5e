package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

type registry struct {
	mu       *sync.RWMutex
	handlers map[string]ports.TaskHandler
}

func newRegistry() registry {
	return registry{mu: &sync.RWMutex{}, handlers: map[string]ports.TaskHandler{}}
}

// Register binds name to handler, replacing any previous binding.
func (r registry) Register(name string, handler ports.TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

func (r registry) handler(name string) (ports.TaskHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", name, domain.ErrUnknownTask)
	}
	return handler, nil
}

// run calls the task's handler. A panicking handler fails the task instead of
// the worker.
func (r registry) run(ctx context.Context, task domain.Task) (err error) {
	handler, err := r.handler(task.Name)
	if err != nil {
		return err
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task %q panicked: %v", task.Name, recovered)
		}
	}()

	return handler(ctx, task)
}
