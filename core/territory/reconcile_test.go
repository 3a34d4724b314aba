package territory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/core/nation"
	"github.com/pyropy/territory/core/snapshot"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadOrRebuildWithoutSnapshotRebuilds(t *testing.T) {
	ctx := context.Background()
	nations := nation.NewMemoryStore(
		model.Nation{ID: "a", ClaimedChunks: []string{"world:0:0", "world:0:1"}},
		model.Nation{ID: "b", ClaimedChunks: []string{"nether:5:5"}},
	)
	store := snapshot.NewMemoryStore()
	s := newTestService(t, Options{Nations: nations, Store: store})

	s.LoadOrRebuild(ctx)

	if s.TotalClaimed() != 3 {
		t.Fatalf("claimed = %d, want 3", s.TotalClaimed())
	}
	if owner, _ := s.NationAt("nether", 5, 5); owner != "b" {
		t.Fatalf("owner = %q, want b", owner)
	}
	if s.CurrentVersion() != 0 {
		t.Fatalf("rebuild must reset version, got %d", s.CurrentVersion())
	}
	if store.Saves() != 1 {
		t.Fatalf("rebuilt index not persisted")
	}
	assertIndexAgreement(t, s)
}

func TestRebuildFirstClaimWinsDeterministically(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	nations := nation.NewMemoryStore(
		model.Nation{ID: "zeta", ClaimedChunks: []string{"world:1:1"}},
		model.Nation{ID: "alpha", ClaimedChunks: []string{"world:1:1", "world:2:2"}},
	)
	s := NewService(Options{Nations: nations, Log: zap.New(core).Sugar()})

	s.RebuildFromAuthoritative(context.Background())

	if owner, _ := s.NationAt("world", 1, 1); owner != "alpha" {
		t.Fatalf("owner = %q, want alpha (lowest id first)", owner)
	}
	if logs.FilterMessage("territory").Len() != 1 {
		t.Fatalf("expected one duplicate claim warning, got %d", logs.FilterMessage("territory").Len())
	}
	assertIndexAgreement(t, s)
}

func TestRebuildSkipsMalformedKeys(t *testing.T) {
	nations := nation.NewMemoryStore(model.Nation{
		ID:            "a",
		ClaimedChunks: []string{"world:1", "world:x:2", "", "world:1:2:3", ":1:1", "world:3:4"},
	})
	s := newTestService(t, Options{Nations: nations})

	s.RebuildFromAuthoritative(context.Background())

	cells := s.AllCells()
	if len(cells) != 1 || cells[0].Pos() != model.NewChunkPos("world", 3, 4) {
		t.Fatalf("cells = %+v", cells)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	nations := nation.NewMemoryStore(
		model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0", "w:0:1", "w:5:5"}},
		model.Nation{ID: "b", ClaimedChunks: []string{"w:0:1", "w:9:9"}},
		model.Nation{ID: "c", ClaimedChunks: []string{"w:5:5", "nether:1:1"}},
	)
	s := newTestService(t, Options{Nations: nations})

	s.RebuildFromAuthoritative(context.Background())
	first := s.AllCells()
	firstEpoch := s.Epoch()

	s.RebuildFromAuthoritative(context.Background())
	second := s.AllCells()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuilds differ:\n%v\n%v", first, second)
	}
	if s.Epoch() == firstEpoch {
		t.Fatalf("rebuild must start a new epoch")
	}
}

func TestRebuildClearsChangeLog(t *testing.T) {
	nations := nation.NewMemoryStore(model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0"}})
	s := newTestService(t, Options{Nations: nations})

	s.Claim("b", "w", 1, 1)
	s.Claim("b", "w", 1, 2)
	s.RebuildFromAuthoritative(context.Background())

	if s.CurrentVersion() != 0 {
		t.Fatalf("version = %d", s.CurrentVersion())
	}
	if d := s.DeltaSince(2); !d.RequiresSnapshot {
		t.Fatalf("client from before the rebuild must resync")
	}
	if _, ok := s.NationAt("w", 1, 1); ok {
		t.Fatalf("claim not backed by a nation record survived rebuild")
	}
}

func TestLoadTrustsSnapshotWhenNationsHaveNoClaims(t *testing.T) {
	ctx := context.Background()
	nations := nation.NewMemoryStore(
		model.Nation{ID: "a"},
		model.Nation{ID: "b"},
	)
	store := snapshot.NewMemoryStore()

	first := newTestService(t, Options{Store: store})
	first.Claim("a", "world", 7, 8)
	first.Claim("b", "world", 1, 1)

	second := newTestService(t, Options{Nations: nations, Store: store})
	second.LoadOrRebuild(ctx)

	if owner, _ := second.NationAt("world", 7, 8); owner != "a" {
		t.Fatalf("snapshot not trusted, owner = %q", owner)
	}
	if second.TotalClaimed() != 2 {
		t.Fatalf("claimed = %d, want 2", second.TotalClaimed())
	}

	// The trusted index is written back to the nation records.
	a, err := nations.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.ClaimedChunks, []string{"world:7:8"}) || a.CapitalChunk != "world:7:8" {
		t.Fatalf("nation a not synced: %+v", a)
	}
}

func TestLoadEmptySnapshotWithNationClaimsRebuilds(t *testing.T) {
	nations := nation.NewMemoryStore(model.Nation{ID: "a", ClaimedChunks: []string{"w:1:1"}})
	store := snapshot.NewMemoryStoreWith(nil)

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(context.Background())

	if owner, _ := s.NationAt("w", 1, 1); owner != "a" {
		t.Fatalf("stale empty snapshot trusted")
	}
	if store.Saves() != 1 {
		t.Fatalf("rebuild result not persisted")
	}
}

func TestLoadDropsOrphanedAndBlankEntries(t *testing.T) {
	ctx := context.Background()
	nations := nation.NewMemoryStore(model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0"}})
	store := snapshot.NewMemoryStoreWith([]model.Cell{
		{World: "w", X: 0, Z: 0, NationID: "a"},
		{World: "w", X: 1, Z: 0, NationID: "ghost"},
		{World: "", X: 2, Z: 0, NationID: "a"},
		{World: "w", X: 3, Z: 0, NationID: " "},
	})

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(ctx)

	cells := s.AllCells()
	if len(cells) != 1 || cells[0].NationID != "a" {
		t.Fatalf("cells = %+v", cells)
	}
	if len(s.ClaimsOf("ghost")) != 0 {
		t.Fatalf("orphan kept in nation index")
	}
	if store.Saves() != 1 {
		t.Fatalf("cleaned snapshot not persisted")
	}
	saved, _ := store.Load(ctx)
	if len(saved) != 1 {
		t.Fatalf("saved = %+v", saved)
	}
	assertIndexAgreement(t, s)
}

func TestLoadWithoutCleanupDoesNotSave(t *testing.T) {
	nations := nation.NewMemoryStore(model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0"}, CapitalChunk: "w:0:0"})
	store := snapshot.NewMemoryStoreWith([]model.Cell{{World: "w", X: 0, Z: 0, NationID: "a"}})

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(context.Background())

	if store.Saves() != 0 {
		t.Fatalf("clean snapshot rewritten")
	}
	if s.Dirty() {
		t.Fatalf("dirty after clean load")
	}
}

func TestSyncBackRepairsNationRecords(t *testing.T) {
	ctx := context.Background()
	nations := nation.NewMemoryStore(
		// Lists a chunk the index gives to b, misses one it owns, capital points at the lost chunk.
		model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0", "w:5:5"}, CapitalChunk: "w:5:5"},
		model.Nation{ID: "b", ClaimedChunks: []string{}},
		// Owns nothing any more but still names a capital.
		model.Nation{ID: "c", ClaimedChunks: []string{"w:9:9"}, CapitalChunk: "w:9:9"},
	)
	store := snapshot.NewMemoryStoreWith([]model.Cell{
		{World: "w", X: 0, Z: 0, NationID: "a"},
		{World: "w", X: 1, Z: 0, NationID: "a"},
		{World: "w", X: 5, Z: 5, NationID: "b"},
	})

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(ctx)

	a, _ := nations.Get(ctx, "a")
	if !reflect.DeepEqual(a.ClaimedChunks, []string{"w:0:0", "w:1:0"}) {
		t.Fatalf("a claims = %v", a.ClaimedChunks)
	}
	if a.CapitalChunk != "w:0:0" {
		t.Fatalf("a capital = %q", a.CapitalChunk)
	}

	b, _ := nations.Get(ctx, "b")
	if !reflect.DeepEqual(b.ClaimedChunks, []string{"w:5:5"}) || b.CapitalChunk != "w:5:5" {
		t.Fatalf("b = %+v", b)
	}

	c, _ := nations.Get(ctx, "c")
	if len(c.ClaimedChunks) != 0 || c.CapitalChunk != "" {
		t.Fatalf("c = %+v", c)
	}
}

func TestLoadResetsVersionAndEpoch(t *testing.T) {
	store := snapshot.NewMemoryStore()
	s := newTestService(t, Options{Store: store})
	s.Claim("a", "w", 0, 0)
	epoch := s.Epoch()

	s.LoadOrRebuild(context.Background())

	if s.CurrentVersion() != 0 || s.Epoch() == epoch {
		t.Fatalf("version %d epoch %s after reload", s.CurrentVersion(), s.Epoch())
	}
	if owner, _ := s.NationAt("w", 0, 0); owner != "a" {
		t.Fatalf("claim lost on reload")
	}
}

func TestLoadFailureFallsBackToRebuild(t *testing.T) {
	nations := nation.NewMemoryStore(model.Nation{ID: "a", ClaimedChunks: []string{"w:3:3"}})
	store := &failingStore{}

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(context.Background())

	if owner, _ := s.NationAt("w", 3, 3); owner != "a" {
		t.Fatalf("rebuild did not run")
	}
	if store.attempts != 1 {
		t.Fatalf("rebuild result save attempts = %d", store.attempts)
	}
}

// brokenNations fails every read once broken is set.
type brokenNations struct {
	*nation.MemoryStore
	broken bool
}

func (b *brokenNations) All(ctx context.Context) ([]model.Nation, error) {
	if b.broken {
		return nil, errors.New("nation store unavailable")
	}
	return b.MemoryStore.All(ctx)
}

func TestFailedRebuildKeepsTerritories(t *testing.T) {
	ctx := context.Background()
	nations := &brokenNations{MemoryStore: nation.NewMemoryStore(model.Nation{ID: "a"})}
	store := snapshot.NewMemoryStore()
	s := newTestService(t, Options{Nations: nations, Store: store})

	s.Claim("a", "world", 0, 0)
	s.Claim("a", "world", 0, 1)
	s.Claim("b", "world", 5, 5)
	epoch := s.Epoch()

	nations.broken = true
	if s.RebuildFromAuthoritative(ctx) {
		t.Fatalf("rebuild reported success with an unreadable nation store")
	}

	if s.TotalClaimed() != 3 || s.CurrentVersion() != 3 || s.Epoch() != epoch {
		t.Fatalf("state changed: cells=%d version=%d", s.TotalClaimed(), s.CurrentVersion())
	}
	if d := s.DeltaSince(0); d.RequiresSnapshot || len(d.Changes) != 3 {
		t.Fatalf("change log lost: %+v", d)
	}

	s.Claim("c", "world", 9, 9)
	saved, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 4 {
		t.Fatalf("persisted %d cells, want 4: %+v", len(saved), saved)
	}
	assertIndexAgreement(t, s)
}

func TestLoadPersistsDroppedRows(t *testing.T) {
	ctx := context.Background()
	nations := nation.NewMemoryStore(
		model.Nation{ID: "a", ClaimedChunks: []string{"w:0:0"}, CapitalChunk: "w:0:0"},
		model.Nation{ID: "b"},
	)
	store := snapshot.NewMemoryStoreWith([]model.Cell{
		{World: "w", X: 0, Z: 0, NationID: "a"},
		{World: "w", X: 0, Z: 0, NationID: "a"},
		{World: "w", X: 0, Z: 0, NationID: "b"},
		{World: " ", X: 1, Z: 1, NationID: "a"},
	})

	s := newTestService(t, Options{Nations: nations, Store: store})
	s.LoadOrRebuild(ctx)

	if store.Saves() != 1 {
		t.Fatalf("saves = %d, want 1", store.Saves())
	}
	saved, _ := store.Load(ctx)
	if len(saved) != 1 || saved[0].NationID != "a" {
		t.Fatalf("saved = %+v", saved)
	}
	if s.Dirty() {
		t.Fatalf("dirty after successful save")
	}
}
