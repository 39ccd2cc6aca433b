package task

import (
	"context"
)

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	// GetForUpdate reads the task and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Task, error)
	// List returns tasks ordered by id. A nil assignedTo lists every task.
	List(ctx context.Context, assignedTo *int64, limit, offset int) ([]*Task, int, error)
	// MarkCompleted links visitID to a still-pending task. It reports false
	// when the task was already completed.
	MarkCompleted(ctx context.Context, id, visitID int64) (bool, error)
}
