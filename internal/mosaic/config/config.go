package config

import (
	"os"

	"github.com/kiosk404/mosaic/internal/mosaic/options"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	historyplugin "github.com/kiosk404/mosaic/internal/mosaic/service/plugin/builtin/history"
)

// Config is the running configuration of the mosaic host.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions creates a running configuration instance based
// on the given options.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	if err := opts.Complete(); err != nil {
		return nil, err
	}
	return &Config{opts}, nil
}

// Sources returns the plugin sources in load order: the in-tree plugins
// first (when enabled), then the configured sources. The history plugin is
// only included when the journal is enabled, since it cannot work without it.
func (c *Config) Sources(intree *plugin.InTreeRegistry) []string {
	var sources []string
	if c.Plugins.Builtin && intree != nil {
		for _, name := range intree.Names() {
			if name == historyplugin.PluginName && !c.History.Enabled {
				continue
			}
			sources = append(sources, plugin.SchemeBuiltin+":"+name)
		}
	}
	if c.Plugins.Enabled {
		sources = append(sources, c.Plugins.Sources...)
	}
	return sources
}

// HistoryConfig returns the completed journal configuration and whether the
// journal is enabled at all.
func (c *Config) HistoryConfig() (history.CompletedConfig, bool) {
	home, _ := os.UserHomeDir()
	cfg := &history.Config{StoreType: c.History.Store, Path: c.History.Path}
	return cfg.Complete(home), c.History.Enabled
}
