package main

import (
	"context"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyropy/territory/core/config"
	"github.com/pyropy/territory/core/journal"
	"github.com/pyropy/territory/core/nation"
	"github.com/pyropy/territory/core/snapshot"
	"github.com/pyropy/territory/core/syncer"
	core "github.com/pyropy/territory/core/territory"
	"github.com/pyropy/territory/lib/logger"
)

var log, _ = logger.New("territory-rpc")

func main() {
	if err := run(); err != nil {
		log.Fatalln("startup", "ERROR", err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Errorw("startup", "error", "config error")
		return err
	}

	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Warnw("startup", "status", "invalid log level, keeping info", "level", cfg.Log.Level)
	}

	nationStore, err := nation.NewLevelDBStore(cfg.Nations.Path)
	if err != nil {
		log.Errorw("startup", "error", "failed to open nation store", "path", cfg.Nations.Path)
		return err
	}
	defer nationStore.Close()
	nations := nation.NewCachedStore(nationStore, cfg.Nations.CacheSize)

	store, closeStore, err := openSnapshotStore(cfg)
	if err != nil {
		log.Errorw("startup", "error", "failed to open snapshot store", "backend", cfg.Snapshot.Backend)
		return err
	}
	defer closeStore()

	opts := core.Options{
		Nations:      nations,
		Store:        store,
		Log:          log.Named("engine"),
		MaxChangeLog: cfg.ChangeLog.Max,
	}

	var changes *journal.SQLiteJournal
	if cfg.Journal.Path != "" {
		changes, err = journal.OpenSQLite(cfg.Journal.Path, log.Named("journal"))
		if err != nil {
			log.Errorw("startup", "error", "failed to open journal", "path", cfg.Journal.Path)
			return err
		}
		defer changes.Close()
		opts.Recorder = changes
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := core.NewService(opts)
	server.LoadOrRebuild(ctx)
	log.Infow("startup", "status", "territories ready", "claimed", server.TotalClaimed(), "epoch", server.Epoch())

	tracker := syncer.NewTracker(server, log.Named("sync"))
	api := NewTerritoryAPI(server, tracker, changes)

	if err := rpc.RegisterName("TerritoryAPI", api); err != nil {
		return err
	}
	rpc.HandleHTTP()

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Errorw("startup", "error", "net listen failed")
		return err
	}

	log.Infow("startup", "status", "territory rpc server started", "address", l.Addr().String())
	defer log.Infow("shutdown", "status", "territory rpc server stopped", "address", l.Addr().String())
	go http.Serve(l, nil)

	log.Infow("startup", "status", "starting sync client pruner")
	go tracker.StartPruner(ctx, cfg.Sync.PruneInterval, cfg.Sync.ClientTTL)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Infow("shutdown", "status", "territory rpc server stopping", "address", l.Addr().String())

	if err := server.Save(); err != nil {
		log.Warnw("shutdown", "status", "final save failed", "error", err)
	}

	return l.Close()
}

func openSnapshotStore(cfg *config.Config) (core.SnapshotStore, func(), error) {
	switch cfg.Snapshot.Backend {
	case config.BackendLevelDB:
		s, err := snapshot.NewLevelDBStore(cfg.Snapshot.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return snapshot.NewFileStore(cfg.Snapshot.Path), func() {}, nil
	}
}
