package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"talk-to-krishna/internal/audio"
	"talk-to-krishna/internal/contextutil"
)

// ClipSource looks up synthesized clips.
type ClipSource interface {
	Wait(ctx context.Context, id string) (audio.Clip, bool)
}

// AudioPath returns the URL path serving clip id.
func AudioPath(id string) string {
	return "/api/audio/" + id
}

// AudioHandler serves synthesized answers.
type AudioHandler struct {
	clips ClipSource
	wait  time.Duration
}

// NewAudioHandler creates a handler that waits up to wait for a pending
// clip before answering.
func NewAudioHandler(clips ClipSource, wait time.Duration) *AudioHandler {
	return &AudioHandler{clips: clips, wait: wait}
}

// AudioStatusResponse is returned while a clip is still being synthesized.
//
// swagger:model AudioStatusResponse
type AudioStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ServeHTTP handles HTTP requests for audio clips.
//
// swagger:route GET /api/audio/{id} getAudio
//
// # Fetch a synthesized answer
//
// ---
// produces:
// - audio/mpeg
// - application/json
// responses:
//
//	'200':
//	  description: The mp3 clip
//	'202':
//	  description: Still synthesizing, retry later
//	  schema:
//	    "$ref": "#/definitions/AudioStatusResponse"
//	'404':
//	  description: Unknown, expired or failed clip
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := chi.URLParam(r, "id")
	if h.clips == nil || id == "" {
		writeError(ctx, w, http.StatusNotFound, "Audio not found")
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()
	clip, ok := h.clips.Wait(waitCtx, id)

	switch {
	case !ok:
		writeError(ctx, w, http.StatusNotFound, "Audio not found")
	case clip.Status == audio.StatusFailed:
		logger.WarnContext(ctx, "audio requested after failed synthesis", "audio_id", id, "reason", clip.Err)
		writeError(ctx, w, http.StatusNotFound, "Audio not available")
	case clip.Status == audio.StatusPending:
		w.Header().Set("Retry-After", "2")
		writeJSON(ctx, w, http.StatusAccepted, AudioStatusResponse{ID: id, Status: string(clip.Status)})
	default:
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
		w.Header().Set("Cache-Control", "private, max-age=600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(clip.Data)
	}
}
