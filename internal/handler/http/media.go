package http

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/service"
	"github.com/windfall/fgl_practice/pkg/response"
)

// MediaHandler streams stored audio (reference audio, generated TTS
// and saved recordings) out of the object store.
type MediaHandler struct {
	log   zerolog.Logger
	store service.ObjectStore
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(log zerolog.Logger, store service.ObjectStore) *MediaHandler {
	return &MediaHandler{log: log, store: store}
}

// Serve handles GET /audios/*
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := path.Clean("audios/" + chi.URLParam(r, "*"))
	if !strings.HasPrefix(key, "audios/") {
		response.BadRequest(w, "invalid audio path")
		return
	}

	data, err := h.store.Download(r.Context(), key)
	if err != nil {
		h.log.Debug().Err(err).Str("key", key).Msg("Audio object not found")
		response.NotFound(w, "audio not found")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
