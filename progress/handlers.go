package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/observability"
	"github.com/hazyhaar/progsync/shield"
)

const maxRequestBody = shield.MaxJSONBody

// Config holds the settings needed to create a Handler.
type Config struct {
	Store *Store

	// Domains restricts accepted domains. Empty accepts any well-formed
	// domain token.
	Domains []Domain

	// Events records one business event per successful write. Optional.
	Events *observability.EventLogger
}

// Handler serves the progress API.
type Handler struct {
	store   *Store
	domains []Domain
	events  *observability.EventLogger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("progress: Store is required")
	}
	return &Handler{store: cfg.Store, domains: cfg.Domains, events: cfg.Events}, nil
}

// Routes returns an http.Handler serving GET / and POST / behind
// auth.RequireSession. The caller mounts it (e.g. at /api/progress) after
// auth.Middleware so that identities resolve.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireSession)
	r.Get("/", h.handleGet)
	r.Post("/", h.handlePost)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.Resolve(r)
	if !ok {
		jsonErr(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	domain := Domain(r.URL.Query().Get("domain"))
	if domain == "" {
		jsonErr(w, "Missing domain parameter", http.StatusBadRequest)
		return
	}
	if !h.checkDomain(w, domain) {
		return
	}

	rec, err := h.store.Get(r.Context(), identity, domain)
	if err != nil {
		h.storeErr(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.Resolve(r)
	if !ok {
		jsonErr(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req struct {
		Domain  Domain          `json:"domain"`
		Prompt  *string         `json:"prompt"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Domain == "" {
		jsonErr(w, "Domain is required", http.StatusBadRequest)
		return
	}
	if !h.checkDomain(w, req.Domain) {
		return
	}
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.store.Upsert(r.Context(), identity, req.Domain, req.Prompt, payload)
	if err != nil {
		h.storeErr(w, r, "upsert", err)
		return
	}
	h.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:  "progress_saved",
		EntityType: "progress",
		EntityID:   string(req.Domain),
		UserID:     identity,
		Action:     "upsert",
		Details:    map[string]any{"items": len(payload.Items), "has_prompt": req.Prompt != nil},
		Success:    true,
	})
	writeJSON(w, http.StatusOK, savedRecord(rec))
}

// savedRecord is the POST response shape: prompt is always present, null
// when the write carried none.
type savedRecord struct {
	Domain    Domain     `json:"domain"`
	Prompt    *string    `json:"prompt"`
	Payload   *Payload   `json:"payload"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func (h *Handler) checkDomain(w http.ResponseWriter, d Domain) bool {
	if err := d.Validate(); err != nil {
		jsonErr(w, "Invalid domain", http.StatusBadRequest)
		return false
	}
	if len(h.domains) > 0 && !slices.Contains(h.domains, d) {
		jsonErr(w, "Unknown domain", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) storeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		jsonErr(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidDomain):
		jsonErr(w, "Invalid domain", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidPayload):
		jsonErr(w, err.Error(), http.StatusBadRequest)
	default:
		shield.GetLogger(r.Context()).Error("progress: store failure", "op", op, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
