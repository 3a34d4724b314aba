package territory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/model"
)

// Territory is the method set served under the TerritoryAPI name.
type Territory interface {
	Claim(args *ClaimArgs, reply *ClaimReply) error
	Unclaim(args *ClaimArgs, reply *ClaimReply) error
	NationAt(args *NationAtArgs, reply *NationAtReply) error
	ClaimsOf(args *ClaimsOfArgs, reply *ClaimsOfReply) error
	WorldClaims(args *WorldClaimsArgs, reply *WorldClaimsReply) error
	AllCells(args *AllCellsArgs, reply *AllCellsReply) error
	Version(args *VersionArgs, reply *VersionReply) error
	DeltaSince(args *DeltaSinceArgs, reply *DeltaSinceReply) error
	// Rebuild recomputes ownership from the nation records. Claims that are
	// not listed in any nation record are lost and counted in Dropped.
	Rebuild(args *RebuildArgs, reply *RebuildReply) error
	Poll(args *PollArgs, reply *PollReply) error
	History(args *HistoryArgs, reply *HistoryReply) error
}

type ClaimArgs struct {
	NationID string
	World    string
	X        int32
	Z        int32
}

type ClaimReply struct {
	Version uint64
}

type NationAtArgs struct {
	World string
	X     int32
	Z     int32
}

type NationAtReply struct {
	NationID string
	Claimed  bool
}

type ClaimsOfArgs struct {
	NationID string
}

type ClaimsOfReply struct {
	Chunks []model.ChunkPos
}

type WorldClaimsArgs struct {
	World string
}

type WorldClaimsReply struct {
	Claims map[string][]model.ChunkPos
}

type AllCellsArgs struct {
	// World limits the snapshot to one world when set.
	World string
}

type AllCellsReply struct {
	Snapshot model.Snapshot
}

type VersionArgs struct {
	Caller string
}

type VersionReply struct {
	Version uint64
	Epoch   string
	Claimed int
}

type DeltaSinceArgs struct {
	SinceVersion int64
}

type DeltaSinceReply struct {
	Delta model.DeltaResult
}

type RebuildArgs struct {
	Caller string
}

type RebuildReply struct {
	Version uint64
	Epoch   string
	Claimed int
	// Dropped counts chunks owned before the rebuild that lost or changed owner.
	Dropped int
}

type PollArgs struct {
	ClientID uuid.UUID
}

type PollReply struct {
	Kind    string
	Version uint64
	Epoch   string
	Changes []model.Change
	Cells   []model.Cell
}

type HistoryArgs struct {
	World    string
	X        int32
	Z        int32
	NationID string
	Limit    int
}

type HistoryEntry struct {
	Epoch      string
	RecordedAt time.Time
	Change     model.Change
}

type HistoryReply struct {
	Entries []HistoryEntry
}
