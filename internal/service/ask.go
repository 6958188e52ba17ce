package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks talk-to-krishna/internal/service Engine,AudioDispatcher
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ask_service.go -package=mocks -mock_names=AskService=MockAskService talk-to-krishna/internal/service AskService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/rag"
)

const (
	// MaxQueryLength is the longest accepted query, in characters.
	MaxQueryLength = 1000
	// MaxHistoryTurns is the longest accepted conversation history.
	MaxHistoryTurns = 20
)

// Engine answers a query. This interface is defined from the service
// layer's perspective (consumer-first); *rag.Pipeline implements it.
type Engine interface {
	Ask(ctx context.Context, q rag.Query) (*rag.Answer, error)
}

// AudioDispatcher schedules speech synthesis of an answer and returns a
// handle without waiting for the audio.
type AudioDispatcher interface {
	Dispatch(ctx context.Context, text string) (string, error)
}

// AskRequest represents an ask request in the domain layer.
type AskRequest struct {
	Query        string     `validate:"required,max=1000"`
	History      []rag.Turn `validate:"max=20"`
	UserID       string
	IncludeAudio bool
	Debug        bool
}

// AskResponse represents an answered request.
type AskResponse struct {
	Answer string
	Tone   rag.Tone
	// Evidence lists the cited passage ids, never nil.
	Evidence  []string
	Retryable bool
	// AudioID is set when audio was requested and dispatched.
	AudioID string
	Debug   *rag.DebugInfo
}

// AskService answers user queries.
type AskService interface {
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

type askService struct {
	engine   Engine
	audio    AudioDispatcher
	validate *validator.Validate
}

// NewAskService creates a new AskService. audio may be nil, in which case
// audio requests are answered without a handle.
func NewAskService(engine Engine, audio AudioDispatcher) AskService {
	return &askService{
		engine:   engine,
		audio:    audio,
		validate: validator.New(),
	}
}

// Ask validates req, runs the engine and dispatches audio when requested.
func (s *askService) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.Query = strings.TrimSpace(req.Query)
	if err := s.check(req); err != nil {
		logger.WarnContext(ctx, "invalid ask request", "error", err)
		return AskResponse{}, err
	}

	started := time.Now()
	answer, err := s.engine.Ask(ctx, rag.Query{Text: req.Query, History: req.History, Debug: req.Debug})
	if err != nil {
		logger.WarnContext(ctx, "ask request aborted", "error", err)
		return AskResponse{}, WrapError(err, "failed to answer query")
	}
	if answer == nil {
		return AskResponse{}, fmt.Errorf("%w: engine returned no answer", ErrExternalService)
	}

	resp := AskResponse{
		Answer:    answer.Text,
		Tone:      answer.Tone,
		Evidence:  answer.Evidence,
		Retryable: answer.Retryable,
		Debug:     answer.Debug,
	}
	if resp.Evidence == nil {
		resp.Evidence = []string{}
	}

	if req.IncludeAudio && s.audio != nil && !answer.Retryable {
		id, err := s.audio.Dispatch(ctx, answer.Text)
		if err != nil {
			logger.WarnContext(ctx, "audio omitted", "error", err)
		} else {
			resp.AudioID = id
		}
	}

	logger.InfoContext(ctx, "ask request processed",
		"user_id", req.UserID,
		"tone", resp.Tone,
		"evidence", resp.Evidence,
		"routes", answer.Routes,
		"audio", resp.AudioID != "",
		"duration", time.Since(started),
	)
	return resp, nil
}

func (s *askService) check(req AskRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return WrapError(err, "failed to validate request")
	}
	fe := validationErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "cannot be empty"}
	case "max":
		if fe.Field() == "History" {
			return &ValidationError{Field: field, Message: fmt.Sprintf("cannot exceed %d turns", MaxHistoryTurns)}
		}
		return &ValidationError{Field: field, Message: fmt.Sprintf("cannot exceed %d characters", MaxQueryLength)}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("failed %q check", fe.Tag())}
	}
}
