package model

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Shared is a lazily loaded Handle shared by every caller for the life of
// the process. Only one load runs at a time; a failed load is not cached, so
// the next Get tries again.
type Shared struct {
	load  Loader
	group singleflight.Group

	mu     sync.RWMutex
	handle *Handle
}

func NewShared(load Loader) *Shared {
	return &Shared{load: load}
}

// Get returns the loaded Handle, loading it on first use. The load outlives
// a cancelled caller so that other waiters still get the result.
func (s *Shared) Get(ctx context.Context) (*Handle, error) {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("load", func() (_ any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("model load panicked: %v", p)
			}
		}()

		s.mu.RLock()
		h := s.handle
		s.mu.RUnlock()
		if h != nil {
			return h, nil
		}

		h, err = s.load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.handle = h
		s.mu.Unlock()
		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether a Handle is cached.
func (s *Shared) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle != nil
}
