package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"estate-listings/models"
	"estate-listings/storage"
	"estate-listings/utils"
)

// Ingestor upserts scraped payloads into the listing store, keyed by url.
type Ingestor struct {
	store  storage.ListingStore
	logger *utils.Logger
	now    func() time.Time
}

// NewIngestor creates an Ingestor with the given store and logger.
func NewIngestor(store storage.ListingStore, logger *utils.Logger) *Ingestor {
	return &Ingestor{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Ingest creates or updates the listing for payload's url.
//
// A lost insert race is reported as duplicate_error with a nil error. Payloads
// that can never be stored return ErrInvalidPayload. Any other error is
// transient and the whole call may be repeated with the same payload.
func (in *Ingestor) Ingest(ctx context.Context, payload models.RawListing) (*models.IngestResult, error) {
	url := strings.TrimSpace(payload.URL())
	if url == "" {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidPayload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var result *models.IngestResult
	err = in.store.Transact(ctx, func(tx storage.ListingTx) error {
		now := in.now()

		existing, err := tx.FindByURL(ctx, url)
		switch {
		case err == nil:
			in.apply(existing, payload)
			existing.RawData = string(raw)
			existing.UpdatedAt = now
			if err := tx.Update(ctx, existing); err != nil {
				return err
			}
			result = &models.IngestResult{Status: models.IngestUpdated, ListingID: existing.ID, URL: url}

		case errors.Is(err, storage.ErrNotFound):
			l := &models.Listing{URL: url, IsActive: true, RawData: string(raw), CreatedAt: now, UpdatedAt: now}
			in.apply(l, payload)
			if l.Source == "" {
				return fmt.Errorf("%w: source is required for a new listing", ErrInvalidPayload)
			}
			if err := tx.Insert(ctx, l); err != nil {
				return err
			}
			result = &models.IngestResult{Status: models.IngestCreated, ListingID: l.ID, URL: url}

		default:
			return err
		}
		return nil
	})

	switch {
	case errors.Is(err, storage.ErrDuplicate):
		in.logger.Warn("[ingest] Integrity error for listing %s: %v", url, err)
		return &models.IngestResult{Status: models.IngestDuplicate, URL: url, Message: "Duplicate listing"}, nil
	case err != nil:
		in.logger.Error("[ingest] Error storing listing %s: %v", url, err)
		return nil, fmt.Errorf("ingest %s: %w", url, err)
	}

	in.logger.With("url", url, "status", result.Status, "listing_id", result.ListingID).
		Info("[ingest] %s listing: %s", result.Status, url)
	return result, nil
}

// IngestBatch ingests payloads one by one, each in its own transaction, and
// returns one result per payload in order. Transient failures are retried with
// retry when it is non-nil; a payload that still fails is reported as failed.
func (in *Ingestor) IngestBatch(ctx context.Context, payloads []models.RawListing, retry *utils.RetryConfig) []*models.IngestResult {
	results := make([]*models.IngestResult, 0, len(payloads))
	for _, p := range payloads {
		results = append(results, in.ingestWithRetry(ctx, p, retry))
	}
	return results
}

func (in *Ingestor) ingestWithRetry(ctx context.Context, payload models.RawListing, retry *utils.RetryConfig) *models.IngestResult {
	var result *models.IngestResult
	attempt := func(ctx context.Context) error {
		var err error
		result, err = in.Ingest(ctx, payload)
		return err
	}

	var err error
	if retry != nil {
		r := *retry
		r.Retryable = func(err error) bool { return !errors.Is(err, ErrInvalidPayload) }
		err = r.DoContext(ctx, "ingest "+payload.URL(), attempt)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		return &models.IngestResult{Status: models.IngestFailed, URL: payload.URL(), Message: err.Error()}
	}
	return result
}

func (in *Ingestor) apply(l *models.Listing, payload models.RawListing) {
	for _, problem := range applyFields(l, payload) {
		in.logger.Warn("[ingest] %s: dropping value for %v", l.URL, problem)
	}
}
