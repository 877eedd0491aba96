package companion

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/psalmlabs/selah/internal/observe"
	"github.com/psalmlabs/selah/internal/server"
	"github.com/psalmlabs/selah/internal/storage"
)

// HeaderUserID identifies the requesting user. Unauthenticated clients get
// the anonymous identity.
const HeaderUserID = "x-user-id"

// Handler exposes the companion HTTP surface.
type Handler struct {
	svc    *Service
	store  storage.Store
	logger *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(svc *Service, store storage.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, store: store, logger: logger}
}

// Routes mounts the companion endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/companion/chat", h.Chat)
	r.Post("/v1/prayers/drafts", h.CreateDraft)
	r.Get("/v1/prayers/drafts", h.ListDrafts)
	r.Get("/v1/debug/envelopes/{traceID}", h.GetEnvelope)
	r.Get("/healthz", h.Health)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	tc := observe.ExtractTraceContext(r, userID(r))
	server.AddLogField(r.Context(), "trace_id", tc.TraceID)

	resp, err := h.svc.Chat(r.Context(), tc, req)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "companion is unavailable right now")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// draftRequest is the confirm-a-suggestion payload.
type draftRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Visibility string `json:"visibility,omitempty"`
	ActionID   string `json:"actionId,omitempty"`
}

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "draft storage is not configured")
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return
	}

	draft := &storage.PrayerDraft{
		ID:         uuid.New().String(),
		UserID:     userID(r),
		Title:      req.Title,
		Body:       req.Body,
		Visibility: req.Visibility,
		ActionID:   req.ActionID,
	}
	if err := h.store.SaveDraft(r.Context(), draft); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to save draft")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         draft.ID,
		"visibility": draft.Visibility,
		"createdAt":  draft.CreatedAt,
	})
}

func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "draft storage is not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	drafts, err := h.store.ListDrafts(r.Context(), userID(r), limit)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to list drafts")
		return
	}
	if drafts == nil {
		drafts = []*storage.PrayerDraft{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

// GetEnvelope returns the archived debug envelope for a trace. Diagnostic
// surface; the payload is served as stored.
func (h *Handler) GetEnvelope(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "envelope storage is not configured")
		return
	}

	traceID := chi.URLParam(r, "traceID")
	rec, err := h.store.GetEnvelope(r.Context(), traceID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no envelope for trace "+traceID)
		return
	}
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to load envelope")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Payload)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userID(r *http.Request) string {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return id
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
