package history

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/repo"
	boltdbStore "github.com/kiosk404/mosaic/internal/mosaic/service/history/store/boltdb"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history/store/inmemory"
	sqliteStore "github.com/kiosk404/mosaic/internal/mosaic/service/history/store/sqlite"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/logger"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBoltDB = "boltdb"
	StoreSQLite = "sqlite"
)

// HistoryToken resolves the invocation journal. The host provides it before
// the load phase when the journal is enabled.
var HistoryToken = plugin.NewToken[repo.InvocationRepository]("history")

// Config holds the configuration for the history module.
// Follows K8S-style: Config -> Complete() -> New(ctx).
type Config struct {
	// StoreType selects the persistence backend: "memory", "boltdb" or "sqlite".
	// Default: "memory".
	StoreType string `json:"store_type,omitempty"`

	// Path is the database file for the boltdb and sqlite backends.
	// Default: "$HOME/.mosaic/history.bolt" for boltdb and
	// "$HOME/.mosaic/history.sqlite3" for sqlite.
	Path string `json:"path,omitempty"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults. homeDir is used for the default database path.
func (c *Config) Complete(homeDir string) CompletedConfig {
	if c.StoreType == "" {
		c.StoreType = StoreMemory
	}
	if c.Path == "" {
		c.Path = filepath.Join(homeDir, ".mosaic", defaultFile(c.StoreType))
	}
	return CompletedConfig{c}
}

// defaultFile keeps each backend on its own file so switching stores never
// opens a database written by the other one.
func defaultFile(storeType string) string {
	if storeType == StoreSQLite {
		return "history.sqlite3"
	}
	return "history.bolt"
}

// Module holds the selected journal backend.
type Module struct {
	Repo   repo.InvocationRepository
	closer func() error
}

// Close releases resources held by the module (e.g., the database handle).
func (m *Module) Close() error {
	if m.closer != nil {
		return m.closer()
	}
	return nil
}

// New creates the history module from a completed config.
func (c CompletedConfig) New(_ context.Context) (*Module, error) {
	logger.Debug("[History] opening %s journal", c.StoreType)

	switch c.StoreType {
	case StoreMemory:
		return &Module{Repo: inmemory.NewInvocationStore()}, nil

	case StoreBoltDB:
		db, err := boltdbStore.Open(c.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history journal %q: %w", c.Path, err)
		}
		return &Module{Repo: boltdbStore.NewInvocationStore(db), closer: db.Close}, nil

	case StoreSQLite:
		s, err := sqliteStore.Open(c.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history journal %q: %w", c.Path, err)
		}
		return &Module{Repo: s, closer: s.Close}, nil
	}
	return nil, fmt.Errorf("unknown history store type %q (must be memory, boltdb or sqlite)", c.StoreType)
}
