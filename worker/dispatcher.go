package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"estate-listings/models"
	"estate-listings/storage"
	"estate-listings/utils"
)

// HandlerFunc runs one task. The returned value is stored as the task result.
type HandlerFunc func(ctx context.Context, t *models.Task) (any, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the task fails straight away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Options tunes a Dispatcher.
type Options struct {
	Queues       []string
	Concurrency  int
	PollInterval time.Duration
	RetryDelay   time.Duration
	RateLimitMs  int
}

// Dispatcher claims tasks from the queue and runs them on a bounded pool.
type Dispatcher struct {
	queue        storage.TaskQueue
	handlers     map[string]HandlerFunc
	queues       []string
	pool         *utils.WorkerPool
	pollInterval time.Duration
	retryDelay   time.Duration
	logger       *utils.Logger
	now          func() time.Time
}

// NewDispatcher creates a Dispatcher. Register handlers with Handle before Run.
func NewDispatcher(queue storage.TaskQueue, opts Options, logger *utils.Logger) *Dispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Dispatcher{
		queue:        queue,
		handlers:     make(map[string]HandlerFunc),
		queues:       opts.Queues,
		pool:         utils.NewWorkerPool(opts.Concurrency, opts.RateLimitMs),
		pollInterval: opts.PollInterval,
		retryDelay:   opts.RetryDelay,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle registers h for tasks called name.
func (d *Dispatcher) Handle(name string, h HandlerFunc) {
	d.handlers[name] = h
}

// Run polls until ctx is cancelled, then waits for in-flight tasks to finish.
// Tasks already claimed are never abandoned half way.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("[worker] Consuming queues %v", d.queues)
	for {
		n, err := d.dispatch(ctx)
		if err != nil && ctx.Err() == nil {
			d.logger.Error("[worker] Claim failed: %v", err)
		}
		if n > 0 && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			d.logger.Info("[worker] Shutting down, waiting for running tasks")
			d.pool.Wait()
			return nil
		case <-time.After(d.pollInterval):
		}
	}
}

// RunOnce claims whatever is due right now, runs it and waits for completion.
// It returns the number of tasks processed.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	n, err := d.dispatch(ctx)
	d.pool.Wait()
	return n, err
}

func (d *Dispatcher) dispatch(ctx context.Context) (int, error) {
	free := d.pool.Available()
	if free == 0 {
		return 0, nil
	}
	tasks, err := d.queue.Claim(ctx, d.queues, free)
	if err != nil {
		return 0, err
	}
	taskCtx := context.WithoutCancel(ctx)
	for _, t := range tasks {
		d.pool.Submit(func() { d.process(taskCtx, t) })
	}
	return len(tasks), nil
}

func (d *Dispatcher) process(ctx context.Context, t *models.Task) {
	log := d.logger.With("task_id", t.ID, "task", t.Name, "attempt", t.Attempts)
	start := time.Now()

	if t.Attempts > t.MaxRetries {
		msg := fmt.Sprintf("abandoned by a worker %d times", t.Attempts)
		d.fail(ctx, log, t, msg)
		log.Error("[worker] %s %s given up: %s", t.Name, t.ID, msg)
		return
	}

	result, err := d.invoke(ctx, t)
	if err == nil {
		body, merr := json.Marshal(result)
		if merr != nil {
			err = Permanent(fmt.Errorf("encode result: %w", merr))
		} else {
			if err := d.queue.Complete(ctx, t.ID, body); err != nil {
				log.Error("[worker] Could not record success of %s: %v", t.ID, err)
			}
			log.Info("[worker] %s %s succeeded in %v", t.Name, t.ID, time.Since(start).Round(time.Millisecond))
			return
		}
	}

	msg := err.Error()
	if IsPermanent(err) || t.Attempts >= t.MaxRetries {
		d.fail(ctx, log, t, msg)
		log.Error("[worker] %s %s failed after %d retries: %v", t.Name, t.ID, t.Attempts, err)
		return
	}

	runAt := d.now().Add(d.retryDelay)
	if rerr := d.queue.Retry(ctx, t.ID, msg, runAt); rerr != nil {
		log.Error("[worker] Could not schedule retry of %s: %v", t.ID, rerr)
		return
	}
	log.Warn("[worker] %s %s failed (retry %d/%d at %s): %v",
		t.Name, t.ID, t.Attempts+1, t.MaxRetries, runAt.Format(time.RFC3339), err)
}

func (d *Dispatcher) fail(ctx context.Context, log *utils.Logger, t *models.Task, msg string) {
	body, _ := json.Marshal(map[string]string{"status": string(models.IngestFailed), "message": msg})
	if err := d.queue.Fail(ctx, t.ID, msg, body); err != nil {
		log.Error("[worker] Could not record failure of %s: %v", t.ID, err)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, t *models.Task) (result any, err error) {
	h, ok := d.handlers[t.Name]
	if !ok {
		return nil, Permanent(fmt.Errorf("no handler for task %q", t.Name))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return h(ctx, t)
}
