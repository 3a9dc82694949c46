package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"estate-listings/models"
	"estate-listings/services"
)

type taskAccepted struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// decodeBody reads a JSON body, keeping numbers as json.Number.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badParam("body", "%v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return badParam("body", "invalid JSON: %v", err)
	}
	return nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload models.RawListing
	if err := decodeBody(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(payload.URL()) == "" {
		s.fail(w, r, badParam("url", "is required"))
		return
	}
	id, err := s.tasks.Ingest(r.Context(), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskAccepted{TaskID: id, Status: models.TaskQueued})
}

// handleIngestBatch accepts either a bare array or {"listings": [...]}.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		s.fail(w, r, err)
		return
	}

	var payloads []models.RawListing
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Listings []models.RawListing `json:"listings"`
		}
		if err := decodeNumbers(trimmed, &wrapped); err != nil {
			s.fail(w, r, err)
			return
		}
		payloads = wrapped.Listings
	} else if err := decodeNumbers(trimmed, &payloads); err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.tasks.QueueBatch(r.Context(), payloads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": id, "status": models.TaskQueued, "batch_size": len(payloads)})
}

func decodeNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return badParam("body", "expected a list of listings: %v", err)
	}
	return nil
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	days, err := optionalInt(r.URL.Query(), "older_than_days", services.DefaultStaleAfterDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if days <= 0 {
		s.fail(w, r, badParam("older_than_days", "must be positive, got %d", days))
		return
	}
	id, err := s.tasks.DeactivateStale(r.Context(), days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskAccepted{TaskID: id, Status: models.TaskQueued})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.fail(w, r, badParam("id", "not a task id: %q", id))
		return
	}
	t, err := s.tasks.Status(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
