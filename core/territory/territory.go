package territory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/constants"
	"github.com/pyropy/territory/core/model"
	"go.uber.org/zap"
)

// SnapshotStore persists the full ownership index.
type SnapshotStore interface {
	Load(ctx context.Context) ([]model.Cell, error)
	Save(ctx context.Context, cells []model.Cell) error
}

// NationProvider gives access to the authoritative nation records.
type NationProvider interface {
	All(ctx context.Context) ([]model.Nation, error)
	Exists(ctx context.Context, nationID string) (bool, error)
	Save(ctx context.Context, nation model.Nation) error
}

// ChangeRecorder is notified of every committed change. It must not block.
type ChangeRecorder interface {
	RecordChange(epoch string, change model.Change)
}

type Options struct {
	Nations      NationProvider
	Store        SnapshotStore
	Recorder     ChangeRecorder
	Log          *zap.SugaredLogger
	MaxChangeLog int
}

// Service is the territory ownership engine.
//
// Writers and readers share one RWMutex: readers never see the three
// indices mid-mutation, and the version only moves while the write lock is held.
type Service struct {
	mu sync.RWMutex

	index   *ownershipIndex
	changes *changeLog
	version uint64
	epoch   string
	dirty   bool

	nations  NationProvider
	store    SnapshotStore
	recorder ChangeRecorder
	log      *zap.SugaredLogger
}

func NewService(opts Options) *Service {
	limit := opts.MaxChangeLog
	if limit <= 0 {
		limit = constants.MAX_CHANGE_LOG
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Service{
		index:    newOwnershipIndex(),
		changes:  newChangeLog(limit),
		epoch:    uuid.NewString(),
		nations:  opts.Nations,
		store:    opts.Store,
		recorder: opts.Recorder,
		log:      log,
	}
}

// Claim assigns the chunk to nationID. A different current owner loses it silently.
func (s *Service) Claim(nationID, world string, x, z int32) {
	if isBlank(nationID) || isBlank(world) {
		return
	}

	pos := model.NewChunkPos(world, x, z)

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.index.owner(pos); ok && previous == nationID {
		return
	}

	s.index.put(nationID, pos)
	s.recordChange(model.OpClaim, pos, nationID)
	s.markDirty()
	s.saveIfNeeded()
}

// Unclaim releases the chunk if nationID owns it. If another nation owns it
// only stale index entries for nationID are purged and nothing is recorded.
func (s *Service) Unclaim(nationID, world string, x, z int32) {
	if isBlank(nationID) || isBlank(world) {
		return
	}

	pos := model.NewChunkPos(world, x, z)

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.index.owner(pos)
	if !ok {
		return
	}

	if owner != nationID {
		s.index.purgeStale(nationID, pos)
		return
	}

	s.index.remove(nationID, pos)
	s.recordChange(model.OpUnclaim, pos, nationID)
	s.markDirty()
	s.saveIfNeeded()
}

func (s *Service) NationAt(world string, x, z int32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.owner(model.NewChunkPos(world, x, z))
}

// ClaimsOf returns a sorted copy of every chunk owned by nationID.
func (s *Service) ClaimsOf(nationID string) []model.ChunkPos {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := s.index.byNation[nationID]
	out := make([]model.ChunkPos, 0, len(claims))
	for pos := range claims {
		out = append(out, pos)
	}

	model.SortChunkPos(out)
	return out
}

// WorldClaims groups the owned chunks of one world by nation.
func (s *Service) WorldClaims(world string) map[string][]model.ChunkPos {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string][]model.ChunkPos{}
	for pos, nationID := range s.index.byWorld[world] {
		out[nationID] = append(out[nationID], pos)
	}

	for _, ps := range out {
		model.SortChunkPos(ps)
	}

	return out
}

func (s *Service) AllCells() []model.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.cells()
}

func (s *Service) TotalClaimed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.len()
}

// Snapshot returns every cell together with the version and epoch they belong to.
func (s *Service) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.Snapshot{
		Version: s.version,
		Epoch:   s.epoch,
		Cells:   s.index.cells(),
	}
}

func (s *Service) recordChange(op model.Op, pos model.ChunkPos, nationID string) {
	s.version++
	change := model.Change{
		Version:  s.version,
		Op:       op,
		World:    pos.World,
		X:        pos.X,
		Z:        pos.Z,
		NationID: nationID,
	}

	s.changes.append(change)
	if s.recorder != nil {
		s.recorder.RecordChange(s.epoch, change)
	}
}

// addIfFree inserts a claim unless another nation already holds the chunk; first writer wins.
func (s *Service) addIfFree(nationID string, pos model.ChunkPos) bool {
	if existing, ok := s.index.owner(pos); ok && existing != nationID {
		s.log.Warnw("territory", "status", "duplicate claim", "chunk", pos.Key(), "kept", existing, "dropped", nationID)
		return false
	}

	s.index.put(nationID, pos)
	return true
}

func isBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}
