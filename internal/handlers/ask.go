package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/rag"
	"talk-to-krishna/internal/service"
)

// maxBodyBytes bounds the ask request payload.
const maxBodyBytes = 1 << 20

// AskHandler handles HTTP requests for questions.
type AskHandler struct {
	askService service.AskService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// AskRequest represents the HTTP request payload for a question.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string        `json:"question"`
	History  []TurnPayload `json:"history,omitempty"`
	UserID   string        `json:"user_id,omitempty"`
	// IncludeAudio requests a speech rendering of the answer.
	IncludeAudio bool `json:"include_audio,omitempty"`
	Debug        bool `json:"debug,omitempty"`
}

// TurnPayload is one earlier exchange of the conversation.
//
// swagger:model TurnPayload
type TurnPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AskResponse represents the HTTP response payload for a question.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// Tone of the answer: crisis, distress or general
	Tone string `json:"tone"`

	// Passage ids cited by the answer, in citation order
	Evidence []string `json:"evidence"`

	// AudioID identifies the pending speech rendering, if requested
	AudioID string `json:"audio_id,omitempty"`

	// AudioURL is where the rendering can be fetched
	AudioURL string `json:"audio_url,omitempty"`

	// Retryable is set when the request timed out and may be retried
	Retryable bool `json:"retryable,omitempty"`

	// Debug is present when debug mode was requested
	Debug *rag.DebugInfo `json:"debug,omitempty"`
}

// ServeHTTP handles HTTP requests for questions.
//
// swagger:route POST /api/ask askQuestion
//
// # Ask a question
//
// Answers a free-form question with guidance grounded in cited verses.
// Use the `debug=true` query parameter or body field to include retrieval
// details in the response.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with evidence
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Invalid question or history
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: The answer could not be produced
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debug := req.Debug
	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		debug = strings.ToLower(debugParam) == "true" || debugParam == "1"
	}

	history := make([]rag.Turn, len(req.History))
	for i, turn := range req.History {
		history[i] = rag.Turn{Question: turn.Question, Answer: turn.Answer}
	}

	svcResp, err := h.askService.Ask(ctx, service.AskRequest{
		Query:        req.Question,
		History:      history,
		UserID:       req.UserID,
		IncludeAudio: req.IncludeAudio,
		Debug:        debug,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	resp := AskResponse{
		Answer:    svcResp.Answer,
		Tone:      string(svcResp.Tone),
		Evidence:  svcResp.Evidence,
		AudioID:   svcResp.AudioID,
		Retryable: svcResp.Retryable,
		Debug:     svcResp.Debug,
	}
	if resp.AudioID != "" {
		resp.AudioURL = AudioPath(resp.AudioID)
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// handleServiceError maps service errors to HTTP status codes.
func (h *AskHandler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(ctx, w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, context.Canceled):
		// The client is gone; nobody reads the response.
		logger.InfoContext(ctx, "request cancelled by client")
	case errors.Is(err, service.ErrExternalService), errors.Is(err, rag.ErrUpstream):
		logger.ErrorContext(ctx, "ask failed", "error", err)
		writeError(ctx, w, http.StatusBadGateway, "External service error")
	default:
		logger.ErrorContext(ctx, "ask failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to process question")
	}
}
