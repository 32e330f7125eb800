package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"feedback_ingest/internal/app"
	"feedback_ingest/internal/domain"
)

type DashboardBuilder interface {
	BuildView(ctx context.Context, scope *domain.Scope) (domain.DashboardView, error)
}

type Ingestor interface {
	Process(ctx context.Context, opt app.ProcessOptions) (app.ProcessResult, error)
	Requeue(ctx context.Context, scope *domain.Scope, externalIDs []string) (int, error)
}

type Handlers struct {
	Dashboard DashboardBuilder
	Ingest    Ingestor
	// APIKey is used when a process request carries none.
	APIKey string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/integrations", func(r chi.Router) {
		r.Get("/hotel-id-rule", h.hotelIDRule)
		r.Group(func(r chi.Router) {
			r.Use(RequireScope)
			r.Get("/feedbacks", h.dashboard)
			r.Post("/feedbacks/process", h.process)
			r.Post("/feedbacks/requeue", h.requeue)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		writeProblem(w, http.StatusBadRequest, "Missing API key", "apiKey is required to classify feedbacks")
	case errors.Is(err, domain.ErrRunInProgress):
		writeProblem(w, http.StatusConflict, "Run in progress", "another ingestion run holds the lock")
	case errors.Is(err, domain.ErrRemoteUnavailable):
		writeProblem(w, http.StatusBadGateway, "Upstream unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "request took too long")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON writes v with a weak ETag; GETs honor If-None-Match.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "encode response")
		return
	}
	if r.Method == http.MethodGet {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handlers) hotelIDRule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"rule": domain.HotelIDRule()})
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r.Context())
	if scope == nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing caller scope")
		return
	}
	view, err := h.Dashboard.BuildView(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, view)
}

type processRequest struct {
	APIKey      string `json:"apiKey"`
	Limit       *int   `json:"limit"`
	DryRun      bool   `json:"dryRun"`
	DeferFailed *bool  `json:"deferFailed"`
}

func (h *Handlers) process(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r.Context())
	if scope == nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing caller scope")
		return
	}
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if req.Limit != nil && *req.Limit < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must not be negative")
		return
	}
	key := req.APIKey
	if key == "" {
		key = h.APIKey
	}

	res, err := h.Ingest.Process(r.Context(), app.ProcessOptions{
		APIKey:      key,
		Limit:       req.Limit,
		DryRun:      req.DryRun,
		Scope:       scope,
		DeferFailed: req.DeferFailed,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, res)
}

type requeueRequest struct {
	ExternalIDs []string `json:"externalIds"`
}

func (h *Handlers) requeue(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r.Context())
	if scope == nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing caller scope")
		return
	}
	var req requeueRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if len(req.ExternalIDs) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "externalIds must not be empty")
		return
	}
	n, err := h.Ingest.Requeue(r.Context(), scope, req.ExternalIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, map[string]int{"requeued": n})
}
