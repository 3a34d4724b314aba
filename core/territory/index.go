package territory

import "github.com/pyropy/territory/core/model"

// ownershipIndex holds the primary owner mapping and the two indices derived from it.
// Every method keeps all three in agreement; callers must hold the service lock.
type ownershipIndex struct {
	owners   map[model.ChunkPos]string
	byNation map[string]map[model.ChunkPos]struct{}
	byWorld  map[string]map[model.ChunkPos]string
}

func newOwnershipIndex() *ownershipIndex {
	ix := &ownershipIndex{}
	ix.reset()
	return ix
}

func (ix *ownershipIndex) reset() {
	ix.owners = map[model.ChunkPos]string{}
	ix.byNation = map[string]map[model.ChunkPos]struct{}{}
	ix.byWorld = map[string]map[model.ChunkPos]string{}
}

func (ix *ownershipIndex) len() int {
	return len(ix.owners)
}

func (ix *ownershipIndex) owner(pos model.ChunkPos) (string, bool) {
	nationID, ok := ix.owners[pos]
	return nationID, ok
}

// put assigns pos to nationID, revoking the previous owner's membership.
func (ix *ownershipIndex) put(nationID string, pos model.ChunkPos) {
	previous, ok := ix.owners[pos]
	ix.owners[pos] = nationID
	if ok && previous != nationID {
		ix.removeNationClaim(previous, pos)
	}

	ix.addDerived(nationID, pos)
}

// remove drops pos from all three indices. The caller has checked that nationID owns it.
func (ix *ownershipIndex) remove(nationID string, pos model.ChunkPos) {
	delete(ix.owners, pos)
	ix.removeNationClaim(nationID, pos)
	ix.removeWorldClaimIfOwner(pos, nationID)
}

// purgeStale drops leftover derived entries for nationID without touching the real owner.
func (ix *ownershipIndex) purgeStale(nationID string, pos model.ChunkPos) {
	ix.removeNationClaim(nationID, pos)
	ix.removeWorldClaimIfOwner(pos, nationID)
}

// rebuildDerived recomputes both derived indices from owners.
func (ix *ownershipIndex) rebuildDerived() {
	ix.byNation = map[string]map[model.ChunkPos]struct{}{}
	ix.byWorld = map[string]map[model.ChunkPos]string{}
	for pos, nationID := range ix.owners {
		ix.addDerived(nationID, pos)
	}
}

func (ix *ownershipIndex) addDerived(nationID string, pos model.ChunkPos) {
	claims, ok := ix.byNation[nationID]
	if !ok {
		claims = map[model.ChunkPos]struct{}{}
		ix.byNation[nationID] = claims
	}
	claims[pos] = struct{}{}

	world, ok := ix.byWorld[pos.World]
	if !ok {
		world = map[model.ChunkPos]string{}
		ix.byWorld[pos.World] = world
	}
	world[pos] = nationID
}

func (ix *ownershipIndex) removeNationClaim(nationID string, pos model.ChunkPos) {
	claims, ok := ix.byNation[nationID]
	if !ok {
		return
	}

	delete(claims, pos)
	if len(claims) == 0 {
		delete(ix.byNation, nationID)
	}
}

func (ix *ownershipIndex) removeWorldClaimIfOwner(pos model.ChunkPos, nationID string) {
	world, ok := ix.byWorld[pos.World]
	if !ok {
		return
	}

	owner, ok := world[pos]
	if ok && owner != nationID {
		return
	}

	delete(world, pos)
	if len(world) == 0 {
		delete(ix.byWorld, pos.World)
	}
}

func (ix *ownershipIndex) cells() []model.Cell {
	cells := make([]model.Cell, 0, len(ix.owners))
	for pos, nationID := range ix.owners {
		cells = append(cells, model.Cell{World: pos.World, X: pos.X, Z: pos.Z, NationID: nationID})
	}

	model.SortCells(cells)
	return cells
}
