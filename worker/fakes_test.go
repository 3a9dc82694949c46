package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"estate-listings/models"
	"estate-listings/storage"
)

// memQueue is a TaskQueue kept in memory. Claim ignores run_at so tests can
// drive retries without waiting.
type memQueue struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	order []string

	retries  map[string]time.Time
	claimErr error
	expired  map[string]bool

	// failEnqueue, when set, is consulted before each Enqueue and may reject it.
	failEnqueue func(t *models.Task) error
}

func newMemQueue() *memQueue {
	return &memQueue{
		tasks:   make(map[string]*models.Task),
		retries: make(map[string]time.Time),
		expired: make(map[string]bool),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, t *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failEnqueue != nil {
		if err := q.failEnqueue(t); err != nil {
			return err
		}
	}
	t.Status = models.TaskQueued
	if _, ok := q.tasks[t.ID]; ok {
		return nil
	}
	cp := *t
	q.tasks[t.ID] = &cp
	q.order = append(q.order, t.ID)
	return nil
}

func (q *memQueue) Claim(ctx context.Context, queues []string, limit int) ([]*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	wanted := make(map[string]bool, len(queues))
	for _, name := range queues {
		wanted[name] = true
	}
	var out []*models.Task
	for _, id := range q.order {
		t := q.tasks[id]
		if len(out) == limit {
			break
		}
		if !wanted[t.Queue] {
			continue
		}
		switch {
		case t.Status == models.TaskQueued:
		case t.Status == models.TaskRunning && q.expired[id]:
			delete(q.expired, id)
			t.Attempts++
		default:
			continue
		}
		t.Status = models.TaskRunning
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// expireLock makes a running task claimable again, as if its worker died.
func (q *memQueue) expireLock(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expired[id] = true
}

func (q *memQueue) Complete(ctx context.Context, id string, result []byte) error {
	return q.update(id, func(t *models.Task) {
		t.Status = models.TaskSucceeded
		t.Result = result
	})
}

func (q *memQueue) Retry(ctx context.Context, id string, errMsg string, runAt time.Time) error {
	return q.update(id, func(t *models.Task) {
		q.retries[id] = runAt
		t.Status = models.TaskQueued
		t.Attempts++
		t.LastError = &errMsg
		t.RunAt = runAt
	})
}

func (q *memQueue) Fail(ctx context.Context, id string, errMsg string, result []byte) error {
	return q.update(id, func(t *models.Task) {
		t.Status = models.TaskFailed
		t.LastError = &errMsg
		t.Result = result
	})
}

func (q *memQueue) update(id string, fn func(*models.Task)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	fn(t)
	return nil
}

func (q *memQueue) Get(ctx context.Context, id string) (*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (q *memQueue) byName(name string) []*models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*models.Task
	for _, id := range q.order {
		if t := q.tasks[id]; t.Name == name {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// urlStore is the smallest ListingStore the handlers need.
type urlStore struct {
	mu     sync.Mutex
	byURL  map[string]*models.Listing
	cutoff time.Time
}

func newURLStore() *urlStore {
	return &urlStore{byURL: make(map[string]*models.Listing)}
}

func (s *urlStore) Transact(ctx context.Context, fn func(storage.ListingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(urlTx{s})
}

type urlTx struct{ s *urlStore }

func (tx urlTx) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	if l, ok := tx.s.byURL[url]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (tx urlTx) Insert(ctx context.Context, l *models.Listing) error {
	l.ID = int64(len(tx.s.byURL) + 1)
	cp := *l
	tx.s.byURL[l.URL] = &cp
	return nil
}

func (tx urlTx) Update(ctx context.Context, l *models.Listing) error {
	cp := *l
	tx.s.byURL[l.URL] = &cp
	return nil
}

func (s *urlStore) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	var n int64
	for _, l := range s.byURL {
		if l.IsActive && l.CreatedAt.Before(cutoff) {
			l.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *urlStore) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for u := range s.byURL {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (s *urlStore) ScanListings(context.Context, models.ListingQuery, func(*models.Listing) error) error {
	return nil
}

func (s *urlStore) CountListings(context.Context, models.ListingFilter) (int, error) { return 0, nil }

func (s *urlStore) GetActiveListing(context.Context, int64) (*models.Listing, error) {
	return nil, storage.ErrNotFound
}

func (s *urlStore) Stats(context.Context, time.Time) (*models.ListingStats, error) {
	return &models.ListingStats{Sources: map[string]int{}}, nil
}

func (s *urlStore) Close() error { return nil }
