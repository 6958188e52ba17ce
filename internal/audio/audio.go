// Package audio renders answers as speech in the background. A Dispatcher
// hands out an id immediately and the clip becomes available in the Store
// once synthesis finishes.
package audio

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_synthesizer.go -package=mocks talk-to-krishna/internal/audio Synthesizer

var (
	// ErrBusy is returned when every worker is occupied.
	ErrBusy = errors.New("audio dispatcher busy")
	// ErrEmptyText is returned when nothing speakable remains after stripping markup.
	ErrEmptyText = errors.New("no text to synthesize")
)

// Synthesizer renders text as audio with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Status is the lifecycle state of a clip.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Clip is a snapshot of one synthesis job.
type Clip struct {
	ID     string
	Status Status
	Data   []byte
	// Err describes the failure when Status is StatusFailed.
	Err string
}
