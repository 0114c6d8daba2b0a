package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/service"
	"github.com/windfall/fgl_practice/internal/session"
	"github.com/windfall/fgl_practice/pkg/response"
)

// PracticeHandler exposes the flashcard flow and the per-slot session
// actions of the controller.
type PracticeHandler struct {
	log        zerolog.Logger
	controller *session.Controller
	content    *service.ContentService
	scoring    *service.ScoringService
}

// NewPracticeHandler creates a new practice handler.
func NewPracticeHandler(
	log zerolog.Logger,
	controller *session.Controller,
	content *service.ContentService,
	scoring *service.ScoringService,
) *PracticeHandler {
	return &PracticeHandler{
		log:        log,
		controller: controller,
		content:    content,
		scoring:    scoring,
	}
}

// Levels handles GET /api/v1/levels
func (h *PracticeHandler) Levels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.content.Levels(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, levels)
}

// cardResponse pairs the drawn card with its session slots.
type cardResponse struct {
	Card  interface{}            `json:"card"`
	Slots []session.SlotSnapshot `json:"slots"`
}

// Card handles GET /api/v1/card?username=...&level=...
// It draws the next unknown word and loads it into the session,
// tearing down whatever was loaded before.
func (h *PracticeHandler) Card(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")
	level := r.URL.Query().Get("level")
	if username == "" {
		handleError(w, errors.Validation("username is required"))
		return
	}

	card, err := h.content.RandomCard(ctx, username, level)
	if err != nil {
		handleError(w, err)
		return
	}

	slots, err := h.controller.LoadContent(ctx, session.Meta{
		Username: username,
		Source:   session.SourceFlashcard,
		Word:     card.Word.Word,
		Pos:      card.Pos,
		Level:    card.Level,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, cardResponse{Card: card, Slots: slots})
}

// markKnownRequest is the body of POST /api/v1/mark_known.
type markKnownRequest struct {
	Username string `json:"username"`
	Word     string `json:"word"`
	Pos      string `json:"pos"`
	Level    string `json:"level"`
}

// MarkKnown handles POST /api/v1/mark_known
func (h *PracticeHandler) MarkKnown(w http.ResponseWriter, r *http.Request) {
	var req markKnownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, errors.Validation("invalid request body"))
		return
	}
	if err := h.content.MarkKnown(r.Context(), req.Username, req.Word, req.Pos, req.Level); err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// sessionResponse is the full session view.
type sessionResponse struct {
	Meta  session.Meta           `json:"meta"`
	Slots []session.SlotSnapshot `json:"slots"`
}

// Session handles GET /api/v1/session
func (h *PracticeHandler) Session(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, sessionResponse{
		Meta:  h.controller.Meta(),
		Slots: h.controller.Snapshots(),
	})
}

// Record handles POST /api/v1/session/slots/{slotID}/record
func (h *PracticeHandler) Record(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.Record)
}

// Stop handles POST /api/v1/session/slots/{slotID}/stop
func (h *PracticeHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.Stop)
}

// Discard handles POST /api/v1/session/slots/{slotID}/discard
func (h *PracticeHandler) Discard(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.Discard)
}

// Save handles POST /api/v1/session/slots/{slotID}/save
func (h *PracticeHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.Save)
}

// Rate handles POST /api/v1/session/slots/{slotID}/rate
func (h *PracticeHandler) Rate(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.RateSlot)
}

// Transcribe handles POST /api/v1/session/slots/{slotID}/transcribe
func (h *PracticeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	h.slotAction(w, r, h.controller.Transcribe)
}

func (h *PracticeHandler) slotAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	slotID := chi.URLParam(r, "slotID")
	if err := action(slotID); err != nil {
		handleError(w, err)
		return
	}
	snap, err := h.controller.Snapshot(slotID)
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}

// Playback handles GET /api/v1/session/slots/{slotID}/audio and serves
// the local artifact of the slot for instant review.
func (h *PracticeHandler) Playback(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")
	artifact, ok := h.controller.Artifact(slotID)
	if !ok {
		response.NotFound(w, "no local recording for slot "+slotID)
		return
	}
	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(artifact.Size()))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// Synthesize handles POST /api/v1/session/slots/{slotID}/tts
func (h *PracticeHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")
	ref, err := h.controller.SynthesizeReference(r.Context(), slotID)
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"tts_path": ref})
}

// Reports handles GET /api/v1/reports?username=...&source=...&audio_id=...
func (h *PracticeHandler) Reports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	reports, err := h.scoring.History(r.Context(), q.Get("username"), q.Get("source"), q.Get("audio_id"), limit)
	if err != nil {
		handleError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, reports)
}

// handleError maps application errors onto the response envelope.
func handleError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		response.Error(w, appErr.HTTPStatus(), &response.ErrorBody{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}
	response.Error(w, http.StatusInternalServerError, errors.Internal("internal server error"))
}
