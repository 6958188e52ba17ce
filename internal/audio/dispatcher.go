package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"talk-to-krishna/internal/contextutil"
)

// DefaultJobTimeout bounds a single synthesis call.
const DefaultJobTimeout = 60 * time.Second

// Options configures a Dispatcher.
type Options struct {
	Workers int
	Voice   string
	// JobTimeout bounds each synthesis call. It runs detached from the
	// request that dispatched it.
	JobTimeout time.Duration
}

// Dispatcher runs synthesis jobs on a bounded worker pool.
type Dispatcher struct {
	pool    *ants.Pool
	store   *Store
	synth   Synthesizer
	voice   string
	timeout time.Duration
}

// NewDispatcher creates a dispatcher with opts.Workers workers. Submissions
// beyond that fail fast with ErrBusy instead of queueing.
func NewDispatcher(synth Synthesizer, store *Store, opts Options) (*Dispatcher, error) {
	if synth == nil || store == nil {
		return nil, fmt.Errorf("audio dispatcher needs a synthesizer and a store")
	}
	pool, err := ants.NewPool(opts.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio pool: %w", err)
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Dispatcher{
		pool:    pool,
		store:   store,
		synth:   synth,
		voice:   opts.Voice,
		timeout: timeout,
	}, nil
}

// Store returns the store clips are written to.
func (d *Dispatcher) Store() *Store {
	return d.store
}

// Dispatch schedules synthesis of answer and returns the clip id without
// waiting for it. Cancelling ctx afterwards does not stop the job.
func (d *Dispatcher) Dispatch(ctx context.Context, answer string) (string, error) {
	speech := PlainText(answer)
	if speech == "" {
		return "", ErrEmptyText
	}

	id := uuid.NewString()
	e := d.store.begin(id)
	jobCtx := context.WithoutCancel(ctx)

	err := d.pool.Submit(func() {
		d.run(jobCtx, e, speech)
	})
	if err != nil {
		d.store.Delete(id)
		if errors.Is(err, ants.ErrPoolOverload) {
			return "", ErrBusy
		}
		return "", fmt.Errorf("failed to submit audio job: %w", err)
	}
	return id, nil
}

func (d *Dispatcher) run(ctx context.Context, e *entry, speech string) {
	logger := contextutil.LoggerFromContext(ctx).With("audio_id", e.id)
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()
	data, err := d.synth.Synthesize(ctx, speech, d.voice)
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("empty audio")
	}
	d.store.finish(e, data, err)

	if err != nil {
		logger.WarnContext(ctx, "speech synthesis failed", "error", err, "duration", time.Since(started))
		return
	}
	logger.InfoContext(ctx, "speech synthesized", "bytes", len(data), "duration", time.Since(started))
}

// Running returns the number of jobs in progress.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Release waits up to timeout for running jobs, then stops the pool.
func (d *Dispatcher) Release(timeout time.Duration) error {
	return d.pool.ReleaseTimeout(timeout)
}
