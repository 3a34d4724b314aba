package main

import (
	"context"
	"errors"
	"strings"

	"github.com/pyropy/territory/core/journal"
	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/core/syncer"
	core "github.com/pyropy/territory/core/territory"
	rpc "github.com/pyropy/territory/rpc/territory"
)

var (
	ErrJournalDisabled = errors.New("change journal is disabled")
	ErrHistoryQuery    = errors.New("history needs a world or a nation id")
	ErrRebuildFailed   = errors.New("rebuild failed, nation records unreadable")
)

var _ rpc.Territory = (*API)(nil)

type API struct {
	server  *core.Service
	tracker *syncer.Tracker
	journal *journal.SQLiteJournal
}

func NewTerritoryAPI(server *core.Service, tracker *syncer.Tracker, j *journal.SQLiteJournal) *API {
	return &API{
		server:  server,
		tracker: tracker,
		journal: j,
	}
}

func (a *API) Claim(args *rpc.ClaimArgs, reply *rpc.ClaimReply) error {
	log.Infow("rpc", "event", "Claim", "args", args)
	a.server.Claim(args.NationID, args.World, args.X, args.Z)
	reply.Version = a.server.CurrentVersion()
	return nil
}

func (a *API) Unclaim(args *rpc.ClaimArgs, reply *rpc.ClaimReply) error {
	log.Infow("rpc", "event", "Unclaim", "args", args)
	a.server.Unclaim(args.NationID, args.World, args.X, args.Z)
	reply.Version = a.server.CurrentVersion()
	return nil
}

func (a *API) NationAt(args *rpc.NationAtArgs, reply *rpc.NationAtReply) error {
	reply.NationID, reply.Claimed = a.server.NationAt(args.World, args.X, args.Z)
	return nil
}

func (a *API) ClaimsOf(args *rpc.ClaimsOfArgs, reply *rpc.ClaimsOfReply) error {
	reply.Chunks = a.server.ClaimsOf(args.NationID)
	return nil
}

func (a *API) WorldClaims(args *rpc.WorldClaimsArgs, reply *rpc.WorldClaimsReply) error {
	reply.Claims = a.server.WorldClaims(args.World)
	return nil
}

func (a *API) AllCells(args *rpc.AllCellsArgs, reply *rpc.AllCellsReply) error {
	snap := a.server.Snapshot()
	if args.World != "" {
		cells := make([]model.Cell, 0)
		for _, c := range snap.Cells {
			if c.World == args.World {
				cells = append(cells, c)
			}
		}
		snap.Cells = cells
	}

	reply.Snapshot = snap
	return nil
}

func (a *API) Version(args *rpc.VersionArgs, reply *rpc.VersionReply) error {
	log.Debugw("rpc", "event", "Version", "caller", args.Caller)
	reply.Version = a.server.CurrentVersion()
	reply.Epoch = a.server.Epoch()
	reply.Claimed = a.server.TotalClaimed()
	return nil
}

func (a *API) DeltaSince(args *rpc.DeltaSinceArgs, reply *rpc.DeltaSinceReply) error {
	reply.Delta = a.server.DeltaSince(args.SinceVersion)
	return nil
}

func (a *API) Rebuild(args *rpc.RebuildArgs, reply *rpc.RebuildReply) error {
	log.Infow("rpc", "event", "Rebuild", "caller", args.Caller)
	before := a.server.AllCells()
	if !a.server.RebuildFromAuthoritative(context.Background()) {
		return ErrRebuildFailed
	}

	for _, c := range before {
		if owner, ok := a.server.NationAt(c.World, c.X, c.Z); !ok || owner != c.NationID {
			reply.Dropped++
		}
	}

	reply.Version = a.server.CurrentVersion()
	reply.Epoch = a.server.Epoch()
	reply.Claimed = a.server.TotalClaimed()
	if reply.Dropped > 0 {
		log.Warnw("rpc", "status", "rebuild dropped claims missing from nation records", "dropped", reply.Dropped)
	}

	log.Infow("rpc", "status", "rebuild finished", "claimed", reply.Claimed, "epoch", reply.Epoch)
	return nil
}

func (a *API) Poll(args *rpc.PollArgs, reply *rpc.PollReply) error {
	update := a.tracker.Next(args.ClientID)

	reply.Kind = update.Kind.String()
	reply.Version = update.Version
	reply.Epoch = update.Epoch
	reply.Changes = update.Changes
	reply.Cells = update.Cells
	return nil
}

func (a *API) History(args *rpc.HistoryArgs, reply *rpc.HistoryReply) error {
	if a.journal == nil {
		return ErrJournalDisabled
	}

	var (
		entries []journal.Entry
		err     error
	)

	ctx := context.Background()
	switch {
	case strings.TrimSpace(args.World) != "":
		entries, err = a.journal.History(ctx, model.NewChunkPos(args.World, args.X, args.Z), args.Limit)
	case strings.TrimSpace(args.NationID) != "":
		entries, err = a.journal.ByNation(ctx, args.NationID, args.Limit)
	default:
		return ErrHistoryQuery
	}
	if err != nil {
		return err
	}

	reply.Entries = make([]rpc.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		reply.Entries = append(reply.Entries, rpc.HistoryEntry{
			Epoch:      e.Epoch,
			RecordedAt: e.RecordedAt,
			Change:     e.Change,
		})
	}

	return nil
}
