package constants

import "time"

const (
	// MAX_CHANGE_LOG bounds the in-memory change log; older entries force a snapshot resync.
	MAX_CHANGE_LOG = 10000

	SNAPSHOT_SCHEMA_VERSION = 1

	SYNC_CLIENT_TTL     = 5 * time.Minute
	SYNC_PRUNE_INTERVAL = 30 * time.Second
)
