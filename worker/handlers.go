package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"estate-listings/models"
	"estate-listings/services"
)

// Register wires the listing and maintenance task handlers into d.
func Register(d *Dispatcher, in *services.Ingestor, m *services.Maintenance, c *Client, staleAfterDays int) {
	d.Handle(models.TaskIngest, ingestHandler(in))
	d.Handle(models.TaskIngestBatch, ingestBatchHandler(c))
	d.Handle(models.TaskDeactivateStale, deactivateHandler(m, staleAfterDays))
}

// decode keeps numbers as json.Number so large prices survive untouched.
func decode(t *models.Task, v any) error {
	dec := json.NewDecoder(bytes.NewReader(t.Payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", t.Name, err))
	}
	return nil
}

func ingestHandler(in *services.Ingestor) HandlerFunc {
	return func(ctx context.Context, t *models.Task) (any, error) {
		var payload models.RawListing
		if err := decode(t, &payload); err != nil {
			return nil, err
		}
		if payload == nil {
			return nil, Permanent(fmt.Errorf("%w: payload is not an object", services.ErrInvalidPayload))
		}
		res, err := in.Ingest(ctx, payload)
		if errors.Is(err, services.ErrInvalidPayload) {
			return nil, Permanent(err)
		}
		return res, err
	}
}

func ingestBatchHandler(c *Client) HandlerFunc {
	return func(ctx context.Context, t *models.Task) (any, error) {
		var payloads []models.RawListing
		if err := decode(t, &payloads); err != nil {
			return nil, err
		}
		return c.fanOut(ctx, t.ID, payloads)
	}
}

func deactivateHandler(m *services.Maintenance, defaultDays int) HandlerFunc {
	return func(ctx context.Context, t *models.Task) (any, error) {
		var args models.DeactivateStaleArgs
		if len(bytes.TrimSpace(t.Payload)) > 0 {
			if err := decode(t, &args); err != nil {
				return nil, err
			}
		}
		if args.OlderThanDays == 0 {
			args.OlderThanDays = defaultDays
		}
		n, err := m.DeactivateStale(ctx, args.OlderThanDays)
		if services.IsValidation(err) {
			return nil, Permanent(err)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "updated_count": n}, nil
	}
}
