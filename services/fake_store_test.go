package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"estate-listings/models"
	"estate-listings/storage"
)

// memStore is an in-memory ListingStore. Transact works on a copy of the rows
// and swaps it in on success, so a failed fn leaves nothing behind.
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]*models.Listing
	nextID int64

	// txErr is returned from the next Transact commit, then cleared.
	txErr error
	// racing makes FindByURL miss and Insert collide for these urls.
	racing map[string]bool

	transactCalls int
	lastQuery     models.ListingQuery
	lastCutoff    time.Time
	lastSince     time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*models.Listing), racing: make(map[string]bool)}
}

func (s *memStore) seed(l *models.Listing) *models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *l
	cp.ID = s.nextID
	s.rows[cp.ID] = &cp
	l.ID = cp.ID
	return l
}

func (s *memStore) byURL(url string) *models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.rows {
		if l.URL == url {
			cp := *l
			return &cp
		}
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memTx struct {
	s      *memStore
	rows   map[int64]*models.Listing
	nextID int64
}

func (s *memStore) Transact(ctx context.Context, fn func(storage.ListingTx) error) error {
	s.mu.Lock()
	s.transactCalls++
	tx := &memTx{s: s, rows: make(map[int64]*models.Listing, len(s.rows)), nextID: s.nextID}
	for id, l := range s.rows {
		cp := *l
		tx.rows[id] = &cp
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		err := s.txErr
		s.txErr = nil
		return err
	}
	s.rows, s.nextID = tx.rows, tx.nextID
	return nil
}

func (tx *memTx) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	if tx.s.racing[url] {
		return nil, storage.ErrNotFound
	}
	for _, l := range tx.rows {
		if l.URL == url {
			cp := *l
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (tx *memTx) Insert(ctx context.Context, l *models.Listing) error {
	if tx.s.racing[l.URL] {
		return storage.ErrDuplicate
	}
	for _, existing := range tx.rows {
		if existing.URL == l.URL {
			return storage.ErrDuplicate
		}
	}
	tx.nextID++
	l.ID = tx.nextID
	cp := *l
	tx.rows[l.ID] = &cp
	return nil
}

func (tx *memTx) Update(ctx context.Context, l *models.Listing) error {
	if _, ok := tx.rows[l.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *l
	tx.rows[l.ID] = &cp
	return nil
}

func (s *memStore) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCutoff = cutoff
	var n int64
	for _, l := range s.rows {
		if l.IsActive && l.CreatedAt.Before(cutoff) {
			l.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) matching(f models.ListingFilter) []*models.Listing {
	var out []*models.Listing
	for _, l := range s.rows {
		if matches(l, f) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func matches(l *models.Listing, f models.ListingFilter) bool {
	if !l.IsActive {
		return false
	}
	if f.Source != "" && l.Source != f.Source {
		return false
	}
	if f.PropertyType != "" && (l.PropertyType == nil || *l.PropertyType != f.PropertyType) {
		return false
	}
	if f.Location != "" && (l.Location == nil ||
		!strings.Contains(strings.ToLower(*l.Location), strings.ToLower(f.Location))) {
		return false
	}
	inRange := func(v *float64, lo, hi *float64) bool {
		if lo == nil && hi == nil {
			return true
		}
		if v == nil {
			return false
		}
		return (lo == nil || *v >= *lo) && (hi == nil || *v <= *hi)
	}
	if !inRange(l.Price, f.MinPrice, f.MaxPrice) ||
		!inRange(l.Rooms, f.MinRooms, f.MaxRooms) ||
		!inRange(l.AreaSqm, f.MinArea, f.MaxArea) {
		return false
	}
	if f.CreatedAfter != nil && l.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && l.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func (s *memStore) ScanListings(ctx context.Context, q models.ListingQuery, fn func(*models.Listing) error) error {
	s.mu.Lock()
	s.lastQuery = q
	rows := s.matching(q.Filter)
	s.mu.Unlock()

	less := func(a, b *models.Listing) int {
		switch q.SortBy {
		case "price":
			pa, pb := -1.0, -1.0
			if a.Price != nil {
				pa = *a.Price
			}
			if b.Price != nil {
				pb = *b.Price
			}
			switch {
			case pa < pb:
				return -1
			case pa > pb:
				return 1
			}
		case "created_at":
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	sort.Slice(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if q.SortOrder == models.SortDesc {
			return c > 0
		}
		return c < 0
	})

	if q.Page != nil {
		start := min(q.Page.Skip, len(rows))
		end := min(start+q.Page.Limit, len(rows))
		rows = rows[start:end]
	}
	for _, l := range rows {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) CountListings(ctx context.Context, f models.ListingFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matching(f)), nil
}

func (s *memStore) GetActiveListing(ctx context.Context, id int64) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok || !l.IsActive {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) Stats(ctx context.Context, recentSince time.Time) (*models.ListingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSince = recentSince

	stats := &models.ListingStats{Sources: make(map[string]int)}
	var sum float64
	var priced int
	for _, l := range s.rows {
		if !l.IsActive {
			continue
		}
		stats.TotalListings++
		stats.Sources[l.Source]++
		if l.Price != nil {
			sum += *l.Price
			priced++
		}
		if !l.CreatedAt.Before(recentSince) {
			stats.RecentListings24h++
		}
	}
	if priced > 0 {
		avg := sum / float64(priced)
		stats.AveragePrice = &avg
	}
	return stats, nil
}

func (s *memStore) Close() error { return nil }

func ptr[T any](v T) *T { return &v }
