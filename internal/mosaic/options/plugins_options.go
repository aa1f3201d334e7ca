package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// PluginsOptions holds the top-level configuration for the plugin host.
// Aligned with the plugins section of the configuration file.
type PluginsOptions struct {
	// Enabled controls whether configured sources are loaded at all. (default: true)
	// In-tree plugins are still served when it is false.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Sources is the ordered list of plugin sources.
	// For example. ["builtin:sys", "./plugins/deploy.so", "manifest:./plugins/lint"].
	// Earlier sources win command name conflicts.
	Sources []string `json:"sources" mapstructure:"sources"`
	// Builtin loads the in-tree plugins ahead of Sources. (default: true)
	Builtin bool `json:"builtin" mapstructure:"builtin"`
	// AtomicRegistration discards everything a plugin registered when its
	// registration or activation fails.
	AtomicRegistration bool `json:"atomic-registration" mapstructure:"atomic-registration"`
	// Deny lists plugins that are explicitly denied to be loaded.
	Deny []string `json:"deny" mapstructure:"deny"`
}

// NewPluginsOptions returns a new instance of PluginsOptions.
func NewPluginsOptions() *PluginsOptions {
	return &PluginsOptions{
		Enabled: true,
		Builtin: true,
		Sources: []string{},
		Deny:    []string{},
	}
}

// Validate checks PluginsOptions fields.
func (o *PluginsOptions) Validate() []error {
	var errs []error

	for i, s := range o.Sources {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("plugins.sources[%d] is empty", i))
		}
	}
	for _, name := range o.Deny {
		if strings.ContainsAny(name, " \t/:") || name == "" {
			errs = append(errs, fmt.Errorf("invalid plugin name %q in plugins.deny", name))
		}
	}

	return errs
}

// AddFlags adds flags for the plugins options.
// Only global-level switches are exposed as CLI flags.
// Per-plugin configuration is read by each plugin from the shared settings.
func (o *PluginsOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "plugins.enabled", o.Enabled, "Load the configured plugin sources.")
	fs.BoolVar(&o.Builtin, "plugins.builtin", o.Builtin, "Load the in-tree plugins before the configured sources.")
	fs.StringSliceVar(&o.Sources, "plugins.sources", o.Sources, "Ordered list of plugin sources (builtin:<name>, so:<path>, manifest:<path>, *.so, *.yaml or a directory).")
	fs.BoolVar(&o.AtomicRegistration, "plugins.atomic-registration", o.AtomicRegistration, "Roll back a plugin's registrations when it fails to register or activate.")
	fs.StringSliceVar(&o.Deny, "plugins.deny", o.Deny, "Plugin names that must not be loaded.")
}
