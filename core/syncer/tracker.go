package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/constants"
	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/lib/cmap"
	"go.uber.org/zap"
)

// Source is the read side of the territory engine used for client sync.
type Source interface {
	DeltaSince(sinceVersion int64) model.DeltaResult
	Snapshot() model.Snapshot
}

type UpdateKind int

const (
	UpdateNone UpdateKind = iota
	UpdateSnapshot
	UpdateDelta
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateSnapshot:
		return "snapshot"
	case UpdateDelta:
		return "delta"
	default:
		return "none"
	}
}

// Update is what a client has to apply to catch up.
type Update struct {
	Kind    UpdateKind
	Version uint64
	Epoch   string
	Changes []model.Change
	Cells   []model.Cell
}

type clientState struct {
	Version  uint64
	Epoch    string
	LastSeen time.Time
}

// Tracker remembers the last version each sync client received.
type Tracker struct {
	source  Source
	clients *cmap.Map[uuid.UUID, clientState]
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewTracker(source Source, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Tracker{
		source:  source,
		clients: cmap.NewMap[uuid.UUID, clientState](),
		log:     log,
		now:     time.Now,
	}
}

// Next decides between a full snapshot, a delta, or nothing for clientID and
// records the version the client will hold afterwards.
func (t *Tracker) Next(clientID uuid.UUID) Update {
	state, known := t.clients.Get(clientID)
	if !known {
		return t.snapshot(clientID)
	}

	delta := t.source.DeltaSince(int64(state.Version))
	if delta.Epoch != state.Epoch || delta.RequiresSnapshot {
		return t.snapshot(clientID)
	}

	t.remember(clientID, delta.Version, delta.Epoch)
	if len(delta.Changes) == 0 {
		return Update{Kind: UpdateNone, Version: delta.Version, Epoch: delta.Epoch}
	}

	t.log.Debugw("sync", "status", "delta", "client", clientID, "changes", len(delta.Changes), "version", delta.Version)
	return Update{
		Kind:    UpdateDelta,
		Version: delta.Version,
		Epoch:   delta.Epoch,
		Changes: delta.Changes,
	}
}

func (t *Tracker) snapshot(clientID uuid.UUID) Update {
	snap := t.source.Snapshot()
	t.remember(clientID, snap.Version, snap.Epoch)

	t.log.Debugw("sync", "status", "snapshot", "client", clientID, "cells", len(snap.Cells), "version", snap.Version)
	return Update{
		Kind:    UpdateSnapshot,
		Version: snap.Version,
		Epoch:   snap.Epoch,
		Cells:   snap.Cells,
	}
}

func (t *Tracker) remember(clientID uuid.UUID, version uint64, epoch string) {
	t.clients.Set(clientID, clientState{Version: version, Epoch: epoch, LastSeen: t.now()})
}

func (t *Tracker) Forget(clientID uuid.UUID) {
	t.clients.Delete(clientID)
}

// Retain forgets every client not in online.
func (t *Tracker) Retain(online []uuid.UUID) {
	keep := make(map[uuid.UUID]struct{}, len(online))
	for _, id := range online {
		keep[id] = struct{}{}
	}

	t.clients.Range(func(id uuid.UUID, _ clientState) bool {
		if _, ok := keep[id]; !ok {
			t.clients.Delete(id)
		}
		return true
	})
}

// Prune forgets clients that have not polled within ttl and returns how many were removed.
func (t *Tracker) Prune(ttl time.Duration) int {
	cutoff := t.now().Add(-ttl)
	removed := 0

	t.clients.Range(func(id uuid.UUID, s clientState) bool {
		if s.LastSeen.Before(cutoff) {
			t.clients.Delete(id)
			removed++
		}
		return true
	})

	return removed
}

func (t *Tracker) Clients() int {
	return t.clients.Len()
}

// StartPruner prunes idle clients every interval until ctx is done.
// Non-positive durations fall back to the package defaults.
func (t *Tracker) StartPruner(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = constants.SYNC_PRUNE_INTERVAL
	}
	if ttl <= 0 {
		ttl = constants.SYNC_CLIENT_TTL
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := t.Prune(ttl); n > 0 {
				t.log.Infow("sync", "status", "pruned idle clients", "removed", n, "remaining", t.Clients())
			}
		case <-ctx.Done():
			return
		}
	}
}
