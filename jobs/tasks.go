package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogRefresh re-warms the cached FBR HS-code catalog.
	TaskCatalogRefresh = "fbr:catalog:refresh"
	// TaskHSCodeReconcile compares the local catalog with the FBR catalog.
	TaskHSCodeReconcile = "hscode:reconcile"
)

// CatalogRefreshPayload carries the reason a refresh was requested.
type CatalogRefreshPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ReconcilePayload scopes a reconciliation scan.
type ReconcilePayload struct {
	Search string `json:"search,omitempty"`
}

// NewCatalogRefreshTask constructs a catalog refresh task.
func NewCatalogRefreshTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogRefresh, data), nil
}

// NewReconcileTask constructs a reconciliation scan task for search.
func NewReconcileTask(search string) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{Search: search})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHSCodeReconcile, data), nil
}

// NewTask builds the task registered under name with its default payload.
func NewTask(name, search string) (*asynq.Task, error) {
	switch name {
	case TaskCatalogRefresh:
		return NewCatalogRefreshTask("manual")
	case TaskHSCodeReconcile:
		return NewReconcileTask(search)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
}

// ErrUnknownTask is returned for task names no handler is registered for.
var ErrUnknownTask = errors.New("jobs: unsupported task")

func decodePayload(t *asynq.Task, target any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
