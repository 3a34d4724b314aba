package territory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/core/snapshot"
	"github.com/pyropy/territory/lib/utils"
)

// LoadOrRebuild establishes the index at startup. A loaded snapshot is trusted
// after cleanup and its result is written back to the nation records; a missing,
// unreadable or stale snapshot is replaced by a rebuild from those records.
func (s *Service) LoadOrRebuild(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, dropped := s.loadLocked(ctx)
	if !loaded {
		s.rebuildLocked(ctx)
		s.saveIfNeeded()
		return
	}

	if s.index.len() == 0 && s.hasNationClaims(ctx) {
		s.log.Warnw("reconcile", "status", "snapshot is empty but nations hold claims, rebuilding")
		s.rebuildLocked(ctx)
		s.saveIfNeeded()
		return
	}

	cleaned := s.cleanupLocked(ctx)
	if dropped > 0 {
		s.log.Infow("reconcile", "status", "dropped blank or duplicate snapshot rows", "dropped", dropped)
		s.markDirty()
		cleaned = true
	}

	s.syncNationsLocked(ctx)
	if cleaned {
		s.saveIfNeeded()
	}

	s.log.Infow("reconcile", "status", "snapshot loaded", "cells", s.index.len(), "cleaned", cleaned)
}

// RebuildFromAuthoritative discards the index and change log and recomputes
// ownership from the nation records. If the records cannot be read nothing
// changes and false is returned.
func (s *Service) RebuildFromAuthoritative(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rebuildLocked(ctx) {
		return false
	}

	s.saveIfNeeded()
	return true
}

func (s *Service) resetLocked() {
	s.index.reset()
	s.changes.reset()
	s.version = 0
	s.epoch = uuid.NewString()
}

// loadLocked replaces the index with the stored snapshot. It reports whether a
// snapshot was read and how many of its rows were dropped as blank or duplicate.
func (s *Service) loadLocked(ctx context.Context) (bool, int) {
	if s.store == nil {
		return false, 0
	}

	cells, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		s.log.Infow("reconcile", "status", "no snapshot found")
		return false, 0
	case err != nil:
		s.log.Warnw("reconcile", "status", "failed to load territories", "error", err)
		return false, 0
	}

	s.resetLocked()
	dropped := 0
	for _, c := range cells {
		if isBlank(c.World) || isBlank(c.NationID) {
			dropped++
			continue
		}

		if owner, ok := s.index.owner(c.Pos()); ok && owner == c.NationID {
			dropped++
			continue
		}

		if !s.addIfFree(c.NationID, c.Pos()) {
			dropped++
		}
	}

	s.dirty = false
	return true, dropped
}

// rebuildLocked recomputes the index from the nation records. When the records
// cannot be read the current index is left untouched and false is returned.
func (s *Service) rebuildLocked(ctx context.Context) bool {
	if s.nations == nil {
		s.resetLocked()
		return true
	}

	nations, err := s.nations.All(ctx)
	if err != nil {
		s.log.Warnw("rebuild", "status", "failed to read nations, keeping current territories", "cells", s.index.len(), "error", err)
		return false
	}

	s.resetLocked()
	sort.Slice(nations, func(i, j int) bool { return nations[i].ID < nations[j].ID })

	skipped := 0
	for _, n := range nations {
		if isBlank(n.ID) {
			continue
		}

		keys := append([]string(nil), n.ClaimedChunks...)
		sort.Strings(keys)

		for _, key := range keys {
			pos, err := model.ParseChunkKey(key)
			if err != nil {
				skipped++
				s.log.Warnw("rebuild", "status", "skipping chunk key", "nation", n.ID, "error", err)
				continue
			}

			s.addIfFree(n.ID, pos)
		}
	}

	s.markDirty()
	s.log.Infow("rebuild", "status", "rebuilt from nations", "nations", len(nations), "cells", s.index.len(), "skipped", skipped)
	return true
}

func (s *Service) hasNationClaims(ctx context.Context) bool {
	if s.nations == nil {
		return false
	}

	nations, err := s.nations.All(ctx)
	if err != nil {
		s.log.Warnw("reconcile", "status", "failed to read nations", "error", err)
		return false
	}

	for _, n := range nations {
		if n.HasClaims() {
			return true
		}
	}

	return false
}

// cleanupLocked drops blank entries and entries owned by nations that no longer exist.
func (s *Service) cleanupLocked(ctx context.Context) bool {
	known := map[string]bool{}
	exists := func(nationID string) bool {
		if s.nations == nil {
			return true
		}

		if v, ok := known[nationID]; ok {
			return v
		}

		ok, err := s.nations.Exists(ctx, nationID)
		if err != nil {
			s.log.Warnw("reconcile", "status", "nation lookup failed, keeping claims", "nation", nationID, "error", err)
			ok = true
		}

		known[nationID] = ok
		return ok
	}

	removed := 0
	for pos, nationID := range s.index.owners {
		if isBlank(pos.World) || isBlank(nationID) || !exists(nationID) {
			delete(s.index.owners, pos)
			removed++
		}
	}

	if removed == 0 {
		return false
	}

	s.index.rebuildDerived()
	s.markDirty()
	s.log.Infow("reconcile", "status", "removed invalid claims", "removed", removed)
	return true
}

// syncNationsLocked rewrites each nation's claimed chunk list and capital from the index.
func (s *Service) syncNationsLocked(ctx context.Context) {
	if s.nations == nil {
		return
	}

	nations, err := s.nations.All(ctx)
	if err != nil {
		s.log.Warnw("reconcile", "status", "failed to read nations", "error", err)
		return
	}

	byNation := map[string][]string{}
	for pos, nationID := range s.index.owners {
		byNation[nationID] = append(byNation[nationID], pos.Key())
	}

	for _, n := range nations {
		if isBlank(n.ID) {
			continue
		}

		target := byNation[n.ID]
		sort.Strings(target)

		changed := false
		if !utils.SameElements(n.ClaimedChunks, target) {
			n.ClaimedChunks = append([]string{}, target...)
			changed = true
		}

		switch {
		case n.CapitalChunk != "" && !utils.Contains(n.ClaimedChunks, n.CapitalChunk):
			n.CapitalChunk = firstOrEmpty(target)
			changed = true
		case n.CapitalChunk == "" && len(n.ClaimedChunks) > 0:
			n.CapitalChunk = firstOrEmpty(target)
			changed = true
		}

		if !changed {
			continue
		}

		if err := s.nations.Save(ctx, n); err != nil {
			s.log.Warnw("reconcile", "status", "failed to sync nation territory", "nation", n.ID, "error", err)
			continue
		}

		s.log.Debugw("reconcile", "status", "nation territory synced", "nation", n.ID, "claims", len(n.ClaimedChunks), "capital", n.CapitalChunk)
	}
}

func firstOrEmpty(keys []string) string {
	if len(keys) == 0 {
		return ""
	}

	return keys[0]
}
