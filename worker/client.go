package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"estate-listings/models"
	"estate-listings/storage"
	"estate-listings/utils"
)

// Client submits tasks to the queue. It never runs them.
type Client struct {
	queue      storage.TaskQueue
	maxRetries int
	logger     *utils.Logger
	now        func() time.Time
}

// NewClient creates a Client; every task it submits may be retried maxRetries times.
func NewClient(queue storage.TaskQueue, maxRetries int, logger *utils.Logger) *Client {
	return &Client{queue: queue, maxRetries: maxRetries, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Submit enqueues a task named name, routed by models.QueueFor, due immediately.
func (c *Client) Submit(ctx context.Context, name string, payload any) (*models.Task, error) {
	return c.submit(ctx, uuid.NewString(), name, payload)
}

func (c *Client) submit(ctx context.Context, id, name string, payload any) (*models.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	now := c.now()
	t := &models.Task{
		ID:         id,
		Name:       name,
		Queue:      models.QueueFor(name),
		Payload:    body,
		MaxRetries: c.maxRetries,
		RunAt:      now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.queue.Enqueue(ctx, t); err != nil {
		return nil, err
	}
	c.logger.Debug("[tasks] Queued %s %s on %s", t.Name, t.ID, t.Queue)
	return t, nil
}

// Ingest queues one payload for ingestion and returns the task id.
func (c *Client) Ingest(ctx context.Context, payload models.RawListing) (string, error) {
	t, err := c.Submit(ctx, models.TaskIngest, payload)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// IngestBatch queues every payload as its own ingestion task.
func (c *Client) IngestBatch(ctx context.Context, payloads []models.RawListing) (*models.BatchReceipt, error) {
	return c.ingestAll(ctx, payloads, func(int) string { return uuid.NewString() })
}

// fanOut queues the payloads of batch task parentID. Child ids are derived
// from the parent id and position, so a retried fan-out re-queues nothing
// that already made it onto the queue.
func (c *Client) fanOut(ctx context.Context, parentID string, payloads []models.RawListing) (*models.BatchReceipt, error) {
	return c.ingestAll(ctx, payloads, func(i int) string {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(parentID+"#"+strconv.Itoa(i))).String()
	})
}

func (c *Client) ingestAll(ctx context.Context, payloads []models.RawListing, idFor func(int) string) (*models.BatchReceipt, error) {
	receipt := &models.BatchReceipt{BatchSize: len(payloads), TaskIDs: make([]string, 0, len(payloads))}
	for i, p := range payloads {
		t, err := c.submit(ctx, idFor(i), models.TaskIngest, p)
		if err != nil {
			return receipt, fmt.Errorf("queue batch item %d of %d: %w", i+1, len(payloads), err)
		}
		receipt.TaskIDs = append(receipt.TaskIDs, t.ID)
	}
	c.logger.Info("[tasks] Queued batch of %d listings", len(payloads))
	return receipt, nil
}

// QueueBatch defers the fan-out itself to a worker and returns the batch task id.
func (c *Client) QueueBatch(ctx context.Context, payloads []models.RawListing) (string, error) {
	if payloads == nil {
		payloads = []models.RawListing{}
	}
	t, err := c.Submit(ctx, models.TaskIngestBatch, payloads)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// DeactivateStale queues a maintenance run. Zero days means the worker default.
func (c *Client) DeactivateStale(ctx context.Context, olderThanDays int) (string, error) {
	t, err := c.Submit(ctx, models.TaskDeactivateStale, models.DeactivateStaleArgs{OlderThanDays: olderThanDays})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Status fetches a task by id.
func (c *Client) Status(ctx context.Context, id string) (*models.Task, error) {
	return c.queue.Get(ctx, id)
}
