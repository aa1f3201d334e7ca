package options

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kiosk404/mosaic/internal/mosaic/service/history"
)

// HistoryOptions configures the invocation journal.
type HistoryOptions struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Store   string `json:"store"   mapstructure:"store"`
	// Path is the database file for the boltdb and sqlite stores.
	// Defaults to $HOME/.mosaic/history.bolt or history.sqlite3 by store.
	Path string `json:"path" mapstructure:"path"`
}

func NewHistoryOptions() *HistoryOptions {
	return &HistoryOptions{
		Enabled: true,
		Store:   history.StoreBoltDB,
	}
}

func (o *HistoryOptions) Validate() []error {
	var errs []error
	switch o.Store {
	case history.StoreMemory, history.StoreBoltDB, history.StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("invalid history store %q, must be one of %s, %s, %s",
			o.Store, history.StoreMemory, history.StoreBoltDB, history.StoreSQLite))
	}
	return errs
}

func (o *HistoryOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "history.enabled", o.Enabled, "Journal every command invocation.")
	fs.StringVar(&o.Store, "history.store", o.Store, "Journal backend: memory, boltdb or sqlite.")
	fs.StringVar(&o.Path, "history.path", o.Path, "Journal database file (default $HOME/.mosaic/history.bolt or history.sqlite3 by store).")
}
