package ports

import (
	"context"

	"github.com/bnema/itcsync/internal/domain"
)

// Dispatcher schedules a task fire-and-forget. Delivery is at least once, so
// task handlers must be idempotent.
type Dispatcher interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

type TaskHandler func(ctx context.Context, task domain.Task) error
