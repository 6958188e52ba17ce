package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talk-to-krishna/internal/audio/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestDispatcher(t *testing.T, synth Synthesizer, workers int) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(synth, NewStore(time.Minute), Options{Workers: workers, Voice: "hi-IN-MadhurNeural", JobTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Release(time.Second) })
	return d
}

func waitClip(t *testing.T, d *Dispatcher, id string) Clip {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clip, ok := d.Store().Wait(ctx, id)
	require.True(t, ok)
	return clip
}

func TestDispatcher_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().Synthesize(gomock.Any(), "अध्याय 2, श्लोक 47\nकर्म करो", "hi-IN-MadhurNeural").Return([]byte("mp3"), nil)
	d := newTestDispatcher(t, synth, 2)

	id, err := d.Dispatch(context.Background(), "**अध्याय 2, श्लोक 47**\n\n1. कर्म करो")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	clip := waitClip(t, d, id)
	assert.Equal(t, StatusReady, clip.Status)
	assert.Equal(t, []byte("mp3"), clip.Data)
}

func TestDispatcher_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{name: "synthesis error", err: errors.New("bad status 500")},
		{name: "empty audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			synth := mocks.NewMockSynthesizer(ctrl)
			synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.data, tt.err)
			d := newTestDispatcher(t, synth, 1)

			id, err := d.Dispatch(context.Background(), "answer")
			require.NoError(t, err)

			clip := waitClip(t, d, id)
			assert.Equal(t, StatusFailed, clip.Status)
			assert.NotEmpty(t, clip.Err)
		})
	}
}

func TestDispatcher_DetachedFromRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	release := make(chan struct{})
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _, _ string) ([]byte, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("job should carry its own deadline")
		}
		return []byte("mp3"), nil
	})
	d := newTestDispatcher(t, synth, 1)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := d.Dispatch(ctx, "answer")
	require.NoError(t, err)
	cancel()
	close(release)

	clip := waitClip(t, d, id)
	assert.Equal(t, StatusReady, clip.Status, "cancelling the request must not cancel synthesis")
}

func TestDispatcher_Busy(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	release := make(chan struct{})
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string, string) ([]byte, error) {
		<-release
		return []byte("mp3"), nil
	})
	d := newTestDispatcher(t, synth, 1)

	first, err := d.Dispatch(context.Background(), "first")
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, d.Store().Len(), "a rejected job leaves no entry behind")

	close(release)
	assert.Equal(t, StatusReady, waitClip(t, d, first).Status)
}

func TestDispatcher_EmptyText(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := newTestDispatcher(t, mocks.NewMockSynthesizer(ctrl), 1)

	_, err := d.Dispatch(context.Background(), "<div></div>")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(nil, NewStore(time.Minute), Options{Workers: 1})
	assert.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewDispatcher(mocks.NewMockSynthesizer(ctrl), nil, Options{Workers: 1})
	assert.Error(t, err)
}
