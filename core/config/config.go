package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFile    = "file"
	BackendLevelDB = "leveldb"
)

var (
	ErrUnknownBackend = errors.New("unknown snapshot backend")
)

type Config struct {
	Server struct {
		Host string `envconfig:"SERVER_HOST" default:"localhost"`
		Port int    `envconfig:"SERVER_PORT" default:"1234"`
	}
	Snapshot struct {
		Backend string `envconfig:"SNAPSHOT_BACKEND" default:"file"`
		Path    string `envconfig:"SNAPSHOT_PATH" default:"data/territories.json.zst"`
	}
	Nations struct {
		Path      string `envconfig:"NATIONS_PATH" default:"data"`
		CacheSize int    `envconfig:"NATIONS_CACHE_SIZE" default:"4096"`
	}
	Journal struct {
		Path string `envconfig:"JOURNAL_PATH"`
	}
	ChangeLog struct {
		Max int `envconfig:"CHANGE_LOG_MAX" default:"10000"`
	}
	Sync struct {
		ClientTTL     time.Duration `envconfig:"SYNC_CLIENT_TTL" default:"5m"`
		PruneInterval time.Duration `envconfig:"SYNC_PRUNE_INTERVAL" default:"30s"`
	}
	Log struct {
		Level string `envconfig:"LOG_LEVEL" default:"info"`
	}
}

func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case BackendFile, BackendLevelDB:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Snapshot.Backend)
	}

	if c.ChangeLog.Max <= 0 {
		return fmt.Errorf("CHANGE_LOG_MAX must be positive, got %d", c.ChangeLog.Max)
	}

	if c.Nations.CacheSize <= 0 {
		return fmt.Errorf("NATIONS_CACHE_SIZE must be positive, got %d", c.Nations.CacheSize)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
