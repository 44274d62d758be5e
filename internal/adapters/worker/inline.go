package worker

import (
	"context"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// Inline runs each task to completion inside Enqueue. The one-shot sync
// command uses it so downloads finish before the process exits. Tasks run
// under the base context, not the enqueuing run's deadline.
type Inline struct {
	registry
	base context.Context
	// Errors collects task failures; Enqueue itself only fails for unknown
	// tasks.
	Errors []error
}

var _ ports.Dispatcher = (*Inline)(nil)

func NewInline(base context.Context) *Inline {
	return &Inline{registry: newRegistry(), base: base}
}

func (i *Inline) Enqueue(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := i.handler(task.Name); err != nil {
		return err
	}

	if err := i.run(i.base, task); err != nil {
		i.Errors = append(i.Errors, err)
	}
	return nil
}
