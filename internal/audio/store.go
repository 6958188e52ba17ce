package audio

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type entry struct {
	id   string
	done chan struct{}
	// data and err are written once, before done is closed.
	data []byte
	err  error
}

func (e *entry) clip() Clip {
	select {
	case <-e.done:
	default:
		return Clip{ID: e.id, Status: StatusPending}
	}
	if e.err != nil {
		return Clip{ID: e.id, Status: StatusFailed, Err: e.err.Error()}
	}
	return Clip{ID: e.id, Status: StatusReady, Data: e.data}
}

// Store keeps clips for a limited time. Entries expire ttl after they were
// created, whatever their state.
type Store struct {
	cache *cache.Cache
}

// NewStore creates a store whose entries live for ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

func (s *Store) begin(id string) *entry {
	e := &entry{id: id, done: make(chan struct{})}
	s.cache.Set(id, e, cache.DefaultExpiration)
	return e
}

func (s *Store) finish(e *entry, data []byte, err error) {
	e.data, e.err = data, err
	close(e.done)
}

func (s *Store) lookup(id string) (*entry, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	return x.(*entry), true
}

// Get returns the current state of a clip.
func (s *Store) Get(id string) (Clip, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return Clip{}, false
	}
	return e.clip(), true
}

// Wait blocks until the clip leaves the pending state or ctx is done, and
// returns its state at that moment.
func (s *Store) Wait(ctx context.Context, id string) (Clip, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return Clip{}, false
	}
	select {
	case <-e.done:
	case <-ctx.Done():
	}
	return e.clip(), true
}

// Delete removes a clip.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of stored clips, expired ones included until the
// next cleanup.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
