package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogRefresh bumps the catalog version so every API replica
	// reloads from upstream.
	TaskCatalogRefresh = "catalog:refresh"
	// TaskCatalogAudit recounts products per category and reports drift.
	TaskCatalogAudit = "catalog:audit"
)

// CatalogRefreshPayload describes why a refresh was requested.
type CatalogRefreshPayload struct {
	Reason string `json:"reason,omitempty"`
}

// CatalogAuditPayload tunes a single audit run.
type CatalogAuditPayload struct {
	FetchLimit int `json:"fetchLimit,omitempty"`
}

// NewCatalogRefreshTask constructs a refresh task.
func NewCatalogRefreshTask(payload CatalogRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", TaskCatalogRefresh, err)
	}
	return asynq.NewTask(TaskCatalogRefresh, data), nil
}

// NewCatalogAuditTask constructs an audit task.
func NewCatalogAuditTask(payload CatalogAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", TaskCatalogAudit, err)
	}
	return asynq.NewTask(TaskCatalogAudit, data), nil
}

// decodePayload accepts an empty payload as the zero value.
func decodePayload(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
