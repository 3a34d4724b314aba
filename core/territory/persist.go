package territory

import (
	"context"
	"errors"
)

var (
	ErrNoStore = errors.New("no snapshot store configured")
)

func (s *Service) markDirty() {
	if s.store == nil {
		return
	}

	s.dirty = true
}

// saveIfNeeded writes the snapshot when something changed. Failures are logged only.
func (s *Service) saveIfNeeded() {
	if !s.dirty || s.store == nil {
		return
	}

	if err := s.saveLocked(); err != nil {
		s.log.Warnw("persist", "status", "failed to save territories", "error", err)
	}
}

func (s *Service) saveLocked() error {
	if s.store == nil {
		return ErrNoStore
	}

	cells := s.index.cells()
	if err := s.store.Save(context.Background(), cells); err != nil {
		return err
	}

	s.dirty = false
	s.log.Debugw("persist", "status", "territories saved", "cells", len(cells), "version", s.version)
	return nil
}

// Save flushes the current index to the snapshot store regardless of the dirty flag.
func (s *Service) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked()
}

// Dirty reports whether a change has not reached the snapshot store yet.
func (s *Service) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dirty
}
