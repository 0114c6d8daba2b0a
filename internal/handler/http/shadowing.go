package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/service"
	"github.com/windfall/fgl_practice/internal/session"
	"github.com/windfall/fgl_practice/pkg/response"
)

// ShadowingHandler exposes the book reader: browsing books and
// chapters, and loading paragraph pages into the session.
type ShadowingHandler struct {
	log        zerolog.Logger
	controller *session.Controller
	content    *service.ContentService
}

// NewShadowingHandler creates a new shadowing handler.
func NewShadowingHandler(
	log zerolog.Logger,
	controller *session.Controller,
	content *service.ContentService,
) *ShadowingHandler {
	return &ShadowingHandler{
		log:        log,
		controller: controller,
		content:    content,
	}
}

// Books handles GET /api/v1/shadowing/books
func (h *ShadowingHandler) Books(w http.ResponseWriter, r *http.Request) {
	books, err := h.content.Books(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, books)
}

// Structure handles GET /api/v1/shadowing/structure?book=...
func (h *ShadowingHandler) Structure(w http.ResponseWriter, r *http.Request) {
	structure, err := h.content.Structure(r.Context(), r.URL.Query().Get("book"))
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, structure)
}

// Content handles GET /api/v1/shadowing/content
// Query: username, book, chapter, subtitle. Loads the first page of
// paragraphs into the session, replacing the previous content.
func (h *ShadowingHandler) Content(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	slots, err := h.controller.LoadContent(r.Context(), session.Meta{
		Username: q.Get("username"),
		Source:   session.SourceShadowing,
		Book:     q.Get("book"),
		Chapter:  q.Get("chapter"),
		Subtitle: q.Get("subtitle"),
	})
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, slots)
}

// More handles GET /api/v1/shadowing/content/more?offset=...&limit=...
// It appends the next page of paragraphs to the active session.
func (h *ShadowingHandler) More(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		handleError(w, errors.Validation("offset must be a non-negative integer"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	added, err := h.controller.AppendContent(r.Context(), offset, limit)
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, added)
}

// generateTtsRequest is the body of POST /api/v1/shadowing/generate_tts.
type generateTtsRequest struct {
	ID int64 `json:"id"`
}

// GenerateTts handles POST /api/v1/shadowing/generate_tts
func (h *ShadowingHandler) GenerateTts(w http.ResponseWriter, r *http.Request) {
	var req generateTtsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		handleError(w, errors.Validation("missing paragraph id"))
		return
	}

	ref, err := h.controller.SynthesizeReference(r.Context(), strconv.FormatInt(req.ID, 10))
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"tts_path": ref})
}
