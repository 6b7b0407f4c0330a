package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/logger"
)

const maxBodyBytes = 1 << 20

// SearchRequest is the body of POST /api/v1/search. Mode may be omitted when
// only one of Basic or Advanced is given.
type SearchRequest struct {
	Corpus   string                `json:"corpus"`
	Mode     pattern.Mode          `json:"mode"`
	Basic    *pattern.BasicQuery   `json:"basic,omitempty"`
	Advanced *pattern.AdvancedForm `json:"advanced,omitempty"`
	Limit    int                   `json:"limit"`
}

// Query compiles the request into a pattern.Query.
func (req SearchRequest) Query() (pattern.Query, error) {
	mode := req.Mode
	if mode == "" {
		switch {
		case req.Advanced != nil && req.Basic == nil:
			mode = pattern.ModeAdvanced
		case req.Basic != nil && req.Advanced == nil:
			mode = pattern.ModeBasic
		default:
			return pattern.Query{}, fmt.Errorf("mode is required: %w", apperrors.ErrInvalidInput)
		}
	}
	switch mode {
	case pattern.ModeBasic:
		if req.Basic == nil {
			return pattern.NewBasic(""), nil
		}
		return pattern.NewBasic(req.Basic.Phrase), nil
	case pattern.ModeAdvanced:
		if req.Advanced == nil {
			return pattern.Query{}, fmt.Errorf("advanced pattern is required: %w", apperrors.ErrInvalidPattern)
		}
		q, err := pattern.Compile(*req.Advanced)
		if err != nil {
			return pattern.Query{}, err
		}
		return pattern.NewAdvanced(q), nil
	default:
		return pattern.Query{}, fmt.Errorf("unknown mode %q: %w", mode, apperrors.ErrInvalidInput)
	}
}

type Handler struct {
	service *searcher.Service
	logger  *slog.Logger
}

func New(service *searcher.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/corpora", h.ListCorpora)
	mux.HandleFunc("GET /api/v1/corpora/current", h.CurrentCorpus)
	mux.HandleFunc("POST /api/v1/corpora/{key}/load", h.LoadCorpus)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.writeErr(w, r, fmt.Errorf("decoding search request: %v: %w", err, apperrors.ErrInvalidInput))
		return
	}
	if req.Limit < 0 {
		h.writeErr(w, r, fmt.Errorf("limit must not be negative: %w", apperrors.ErrInvalidInput))
		return
	}
	q, err := req.Query()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	result, err := h.service.Search(r.Context(), req.Corpus, q, req.Limit)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListCorpora(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"corpora": list,
		"count":   len(list),
	})
}

func (h *Handler) CurrentCorpus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Status())
}

func (h *Handler) LoadCorpus(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Load(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.CacheStats())
}

// CacheInvalidate drops cached state for ?corpus=<key>, or everything.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("corpus")
	if err := h.service.Invalidate(r.Context(), key); err != nil {
		h.writeErr(w, r, err)
		return
	}
	resp := map[string]string{"status": "invalidated"}
	if key != "" {
		resp["corpus"] = key
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrFetchFailed) {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
