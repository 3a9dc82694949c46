package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task names and the queue partitions they are routed to.
const (
	TaskIngest          = "listings.ingest"
	TaskIngestBatch     = "listings.ingest_batch"
	TaskDeactivateStale = "maintenance.deactivate_stale"

	QueueListings    = "listings"
	QueueMaintenance = "maintenance"
)

// QueueFor returns the partition a task name is routed to.
func QueueFor(name string) string {
	switch name {
	case TaskDeactivateStale:
		return QueueMaintenance
	default:
		return QueueListings
	}
}

// Task is one unit of work on the queue.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     TaskStatus      `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  *string         `json:"last_error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	RunAt      time.Time       `json:"run_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DeactivateStaleArgs is the payload of a maintenance.deactivate_stale task.
type DeactivateStaleArgs struct {
	OlderThanDays int `json:"older_than_days"`
}
