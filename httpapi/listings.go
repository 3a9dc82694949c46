package httpapi

import (
	"net/http"
	"strconv"

	"estate-listings/services"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	p, err := listingParams(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.listings.Query(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.listings.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.fail(w, r, badParam("id", "not a listing id: %q", r.PathValue("id")))
		return
	}
	l, err := s.listings.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleExport streams the full match set. Parameters are validated before any
// byte is written so bad input still gets a 400.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := services.ParseExportFormat(q.Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := listingParams(q)
	if err == nil {
		_, _, err = services.Normalize(p)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch format {
	case services.ExportJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="listings.csv"`)
	}

	tw := &trackingWriter{ResponseWriter: w}
	n, err := s.listings.Export(r.Context(), p, format, tw)
	if err != nil {
		if !tw.wrote {
			w.Header().Del("Content-Disposition")
			s.fail(w, r, err)
			return
		}
		s.logger.Error("[http] Export aborted after %d listings: %v", n, err)
	}
}
