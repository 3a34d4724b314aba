package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pyropy/territory/core/model"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var (
	ErrEmptyPath = errors.New("empty journal path")
)

// timeLayout is fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one journaled change.
type Entry struct {
	Epoch      string
	RecordedAt time.Time
	model.Change
}

type record struct {
	epoch  string
	change model.Change
	at     time.Time
}

// SQLiteJournal keeps a queryable history of committed changes.
// Writes go through a bounded queue drained by one goroutine and are dropped
// when the queue is full; the engine's own log and snapshot stay authoritative.
type SQLiteJournal struct {
	db  *sql.DB
	log *zap.SugaredLogger

	mu      sync.RWMutex
	ch      chan record
	wg      sync.WaitGroup
	once    sync.Once
	closed  bool
	dropped atomic.Uint64
}

func OpenSQLite(path string, log *zap.SugaredLogger) (*SQLiteJournal, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &SQLiteJournal{
		db:  db,
		log: log,
		ch:  make(chan record, 4096),
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()

	return j, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS changes (
			epoch TEXT NOT NULL,
			version INTEGER NOT NULL,
			op TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			nation_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (epoch, version)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_pos ON changes(world, x, z, recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_nation ON changes(nation_id, recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordChange queues a change for writing. It never blocks.
func (j *SQLiteJournal) RecordChange(epoch string, change model.Change) {
	if j == nil {
		return
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return
	}

	select {
	case j.ch <- record{epoch: epoch, change: change, at: time.Now().UTC()}:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many changes were discarded because the queue was full.
func (j *SQLiteJournal) Dropped() uint64 {
	return j.dropped.Load()
}

func (j *SQLiteJournal) loop() {
	for r := range j.ch {
		if err := j.insert(r); err != nil {
			j.log.Warnw("journal", "status", "failed to write change", "version", r.change.Version, "error", err)
		}
	}
}

func (j *SQLiteJournal) insert(r record) error {
	c := r.change
	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO changes (epoch, version, op, world, x, z, nation_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.epoch, int64(c.Version), string(c.Op), c.World, c.X, c.Z, c.NationID, r.at.Format(timeLayout),
	)
	return err
}

// History returns the changes of one chunk, newest first.
func (j *SQLiteJournal) History(ctx context.Context, pos model.ChunkPos, limit int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT epoch, version, op, world, x, z, nation_id, recorded_at FROM changes
		 WHERE world = ? AND x = ? AND z = ?
		 ORDER BY recorded_at DESC, version DESC LIMIT ?`,
		pos.World, pos.X, pos.Z, normalizeLimit(limit))
}

// ByNation returns the changes made for one nation, newest first.
func (j *SQLiteJournal) ByNation(ctx context.Context, nationID string, limit int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT epoch, version, op, world, x, z, nation_id, recorded_at FROM changes
		 WHERE nation_id = ?
		 ORDER BY recorded_at DESC, version DESC LIMIT ?`,
		nationID, normalizeLimit(limit))
}

func (j *SQLiteJournal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			version int64
			op      string
			at      string
		)
		if err := rows.Scan(&e.Epoch, &version, &op, &e.World, &e.X, &e.Z, &e.NationID, &at); err != nil {
			return nil, err
		}

		e.Version = uint64(version)
		e.Op = model.Op(op)
		e.RecordedAt, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("recorded_at %q: %w", at, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close drains queued changes and closes the database.
func (j *SQLiteJournal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.ch)
		j.mu.Unlock()

		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
