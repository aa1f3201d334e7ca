package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/safego"
)

// Config holds the configuration for creating a Host.
// Follows the Config -> Complete() -> New() pattern.
type Config struct {
	// Sources is the ordered list of plugin sources. Order decides which
	// plugin wins a name conflict.
	Sources []string

	// Logger is shared with plugins through LoggerToken.
	Logger logger.Logger

	// Settings is shared with plugins through ConfigToken.
	Settings Settings

	// IOStreams are handed to command handlers.
	IOStreams genericclioptions.IOStreams

	// AtomicRegistration buffers each plugin's registrations and commits
	// them only if registration and activation succeed.
	AtomicRegistration bool

	// Deny lists plugin names to skip after validation.
	Deny []string

	// APIVersion is the plugin contract version manifests are checked against.
	APIVersion string

	// InTree serves builtin: sources.
	InTree *InTreeRegistry

	// ModuleLoaders adds or replaces loaders per source scheme.
	ModuleLoaders map[string]ModuleLoader
}

// CompletedConfig is the validated and completed host configuration.
type CompletedConfig struct {
	*Config
}

// Complete fills in defaults.
func (c *Config) Complete() CompletedConfig {
	if c.Logger == nil {
		c.Logger = logger.Std()
	}
	if c.Settings == nil {
		c.Settings = emptySettings{}
	}
	if c.IOStreams.Out == nil {
		c.IOStreams.Out = io.Discard
	}
	if c.IOStreams.ErrOut == nil {
		c.IOStreams.ErrOut = io.Discard
	}
	if c.APIVersion == "" {
		c.APIVersion = APIVersion
	}
	if c.InTree == nil {
		c.InTree = NewInTreeRegistry()
	}
	return CompletedConfig{c}
}

// New creates a Host with the built-in services registered.
func (c CompletedConfig) New() (*Host, error) {
	validator, err := NewValidator(c.APIVersion)
	if err != nil {
		return nil, err
	}

	h := &Host{
		sources:   append([]string(nil), c.Sources...),
		log:       c.Logger,
		settings:  c.Settings,
		streams:   c.IOStreams,
		atomic:    c.AtomicRegistration,
		validator: validator,
		commands:  NewCommandRegistry(),
		hooks:     NewHookDispatcher(),
		services:  NewServiceRegistry(),
		denied:    make(map[string]bool, len(c.Deny)),
		byName:    make(map[string]*Record),
		loaders: map[string]ModuleLoader{
			SchemeBuiltin:  c.InTree,
			SchemeSO:       SharedObjectLoader{},
			SchemeManifest: ManifestLoader{},
		},
	}
	for _, name := range c.Deny {
		h.denied[name] = true
	}
	for scheme, l := range c.ModuleLoaders {
		h.loaders[scheme] = l
	}

	if err := h.services.RegisterBuiltin(LoggerToken.ServiceToken, c.Logger); err != nil {
		return nil, err
	}
	if err := h.services.RegisterBuiltin(ConfigToken.ServiceToken, c.Settings); err != nil {
		return nil, err
	}

	h.engine = &Engine{
		commands: h.commands,
		hooks:    h.hooks,
		services: h.services,
		settings: h.settings,
		log:      h.log,
		out:      h.streams.Out,
		errOut:   h.streams.ErrOut,
	}
	return h, nil
}

// Host owns the registries for one process. It drives the load phase once,
// then serves commands from read-only registries.
type Host struct {
	sources  []string
	log      logger.Logger
	settings Settings
	streams  genericclioptions.IOStreams
	atomic   bool
	denied   map[string]bool

	validator *Validator
	loaders   map[string]ModuleLoader

	commands *CommandRegistry
	hooks    *HookDispatcher
	services *ServiceRegistry
	engine   *Engine

	byName  map[string]*Record
	records []*Record

	loadOnce sync.Once
	report   *LoadReport

	shutdownOnce sync.Once
	shutdownErr  error
}

// ProvideService registers a host-owned capability. It must be called
// before Load so that plugins can resolve it during registration.
func (h *Host) ProvideService(token *ServiceToken, impl interface{}) error {
	return h.services.RegisterBuiltin(token, impl)
}

// Load runs the load phase over the configured sources and then seals the
// registries. Only the first call loads; later calls return the same report.
// The error is non-nil only when ctx was cancelled.
func (h *Host) Load(ctx context.Context) (*LoadReport, error) {
	h.loadOnce.Do(func() {
		h.report = h.loadAll(ctx, h.sources)
		h.commands.seal()
		h.hooks.seal()
		h.services.seal()
	})
	return h.report, ctx.Err()
}

// Execute runs one command. See Engine.Execute.
func (h *Host) Execute(ctx context.Context, name string, args Args) (ExitStatus, error) {
	return h.engine.Execute(ctx, name, args)
}

// CommandInfo describes a live command for help output.
type CommandInfo struct {
	Name        string
	Description string
	Plugin      string
	Flags       []FlagDef
}

// ListCommands returns every live command in registration order.
func (h *Host) ListCommands() []CommandInfo {
	entries := h.commands.List()
	out := make([]CommandInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, CommandInfo{
			Name:        e.Definition.Name,
			Description: e.Definition.Description,
			Plugin:      e.Plugin,
			Flags:       append([]FlagDef(nil), e.Definition.Flags...),
		})
	}
	return out
}

// Plugins returns the loaded plugin records in load order.
func (h *Host) Plugins() []*Record {
	return append([]*Record(nil), h.records...)
}

// Report returns the load report, or nil before Load.
func (h *Host) Report() *LoadReport { return h.report }

// Commands returns the command registry.
func (h *Host) Commands() *CommandRegistry { return h.commands }

// Hooks returns the hook dispatcher.
func (h *Host) Hooks() *HookDispatcher { return h.hooks }

// Services returns the service registry.
func (h *Host) Services() *ServiceRegistry { return h.services }

// Engine returns the execution engine.
func (h *Host) Engine() *Engine { return h.engine }

// Shutdown calls Deactivate on every loaded plugin, in load order. A failing
// or panicking teardown is logged and does not stop the others. Only the
// first call does any work.
func (h *Host) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		var errs []error
		for _, rec := range h.records {
			d, ok := rec.plugin.(Deactivator)
			if !ok {
				continue
			}
			logger.Debug("[Plugin] deactivating plugin %q", rec.Manifest.Name)
			if err := safego.Call(func() error { return d.Deactivate(ctx) }); err != nil {
				logger.Warn("[Plugin] plugin %q Deactivate() error: %v", rec.Manifest.Name, err)
				errs = append(errs, fmt.Errorf("plugin %q: %w", rec.Manifest.Name, err))
			}
		}
		h.shutdownErr = errors.Join(errs...)
	})
	return h.shutdownErr
}

// emptySettings is used when the host is built without configuration.
type emptySettings struct{}

func (emptySettings) Get(string) interface{}               { return nil }
func (emptySettings) GetString(string) string              { return "" }
func (emptySettings) GetBool(string) bool                  { return false }
func (emptySettings) GetInt(string) int                    { return 0 }
func (emptySettings) GetStringSlice(string) []string       { return nil }
func (emptySettings) IsSet(string) bool                    { return false }
func (emptySettings) AllSettings() map[string]interface{} { return map[string]interface{}{} }
