package extraction

import (
	"context"

	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/tasks"
)

func operationLogTask(store OperationLogStore, entry *models.OperationLog) tasks.Task {
	return tasks.Task{
		ID:   entry.ID,
		Name: "operation_log",
		Run: func(ctx context.Context) error {
			return store.Insert(ctx, entry)
		},
	}
}

func backgroundRun(extractionID string, run func(ctx context.Context) error) tasks.Task {
	return tasks.Task{
		ID:   extractionID,
		Name: "extraction",
		Run:  run,
	}
}
