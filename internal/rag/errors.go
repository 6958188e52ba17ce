package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfDomain is recorded when the relevance gate rejects a query.
	ErrOutOfDomain = errors.New("query is outside the supported domain")
	// ErrUpstream marks a failed or unparseable collaborator call.
	ErrUpstream = errors.New("upstream call failed")
	// ErrEmptyCorpusResult means retrieval produced no usable candidate.
	ErrEmptyCorpusResult = errors.New("no passage passed retrieval")
	// ErrTimeout means the request deadline elapsed inside the pipeline.
	ErrTimeout = errors.New("request timed out")
	// ErrInvalidAnswer marks generated text rejected by a validator. It is
	// always reported together with ErrUpstream.
	ErrInvalidAnswer = errors.New("generated answer failed validation")
)

// StageError wraps an error with the pipeline stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// upstream wraps a collaborator failure so that it matches ErrUpstream
// while keeping the original cause inspectable.
func upstream(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", ErrUpstream, err)}
}

// malformed reports an unusable model response.
func malformed(stage Stage, format string, args ...any) error {
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %s", ErrUpstream, fmt.Sprintf(format, args...))}
}

func invalid(stage Stage, format string, args ...any) error {
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w: %s", ErrUpstream, ErrInvalidAnswer, fmt.Sprintf(format, args...))}
}
