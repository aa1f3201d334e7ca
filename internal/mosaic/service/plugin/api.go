package plugin

import (
	"fmt"

	"github.com/kiosk404/mosaic/pkg/logger"
)

// PluginAPI is the scoped handle given to a plugin during registration and
// activation. Everything added through it is attributed to that plugin.
type PluginAPI interface {
	// PluginName returns the name of the plugin this handle is scoped to.
	PluginName() string

	// AddCommand registers a command. A name conflict is logged, reported
	// and returned; the plugin keeps loading.
	AddCommand(cmd CommandDefinition) error

	// AddHook appends a handler for event.
	AddHook(event HookEvent, handler HookHandler) error

	// ProvideService registers a shared implementation under token.
	// Built-in tokens cannot be overwritten.
	ProvideService(token *ServiceToken, impl interface{}) error

	// Resolve returns the implementation registered for token, or an error
	// of kind ServiceNotFound.
	Resolve(token *ServiceToken) (interface{}, error)

	// Logger returns the shared logger tagged with the plugin name.
	Logger() logger.Logger

	// Settings returns the shared read-only configuration.
	Settings() Settings
}

type stagedHook struct {
	event   HookEvent
	handler HookHandler
}

type stagedService struct {
	token *ServiceToken
	impl  interface{}
}

// pluginAPIImpl implements PluginAPI on top of the host registries. With
// staging enabled, registrations are buffered until commit.
type pluginAPIImpl struct {
	name     string
	commands *CommandRegistry
	hooks    *HookDispatcher
	services *ServiceRegistry
	log      logger.Logger
	settings Settings

	staging  bool
	cmds     []CommandDefinition
	hookList []stagedHook
	svcs     []stagedService

	added     []string
	conflicts []error
}

var _ PluginAPI = (*pluginAPIImpl)(nil)

func newPluginAPI(h *Host, name string, staging bool) *pluginAPIImpl {
	return &pluginAPIImpl{
		name:     name,
		commands: h.commands,
		hooks:    h.hooks,
		services: h.services,
		log:      h.log.With("plugin", name),
		settings: h.settings,
		staging:  staging,
	}
}

func (a *pluginAPIImpl) PluginName() string { return a.name }

func (a *pluginAPIImpl) AddCommand(cmd CommandDefinition) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name must not be empty")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	if !a.staging {
		return a.addCommand(cmd)
	}

	owner := ""
	if e, ok := a.commands.Resolve(cmd.Name); ok {
		owner = e.Plugin
	}
	for _, c := range a.cmds {
		if c.Name == cmd.Name {
			owner = a.name
		}
	}
	if owner != "" {
		logger.Warn("[Plugin] command %q from plugin %q conflicts with plugin %q, keeping %q",
			cmd.Name, a.name, owner, owner)
		err := &Error{
			Kind:    KindNameConflict,
			Plugin:  a.name,
			Command: cmd.Name,
			Err:     fmt.Errorf("already registered by plugin %q", owner),
		}
		a.conflicts = append(a.conflicts, err)
		return err
	}
	a.cmds = append(a.cmds, cmd)
	return nil
}

func (a *pluginAPIImpl) addCommand(cmd CommandDefinition) error {
	if err := a.commands.Add(cmd, a.name); err != nil {
		a.conflicts = append(a.conflicts, err)
		return err
	}
	a.added = append(a.added, cmd.Name)
	return nil
}

func (a *pluginAPIImpl) AddHook(event HookEvent, handler HookHandler) error {
	if !a.staging {
		return a.hooks.Register(event, handler, a.name)
	}
	if event == "" || handler == nil {
		return fmt.Errorf("hook event and handler are required")
	}
	a.hookList = append(a.hookList, stagedHook{event: event, handler: handler})
	return nil
}

func (a *pluginAPIImpl) ProvideService(token *ServiceToken, impl interface{}) error {
	if !a.staging {
		return a.services.Register(token, impl, a.name)
	}
	if token == nil {
		return fmt.Errorf("service token must not be nil")
	}
	if a.services.Has(token) || a.stagedService(token) != nil {
		return &Error{
			Kind:   KindNameConflict,
			Plugin: a.name,
			Err:    fmt.Errorf("service %q is already provided", token),
		}
	}
	a.svcs = append(a.svcs, stagedService{token: token, impl: impl})
	return nil
}

func (a *pluginAPIImpl) stagedService(token *ServiceToken) *stagedService {
	for i := range a.svcs {
		if a.svcs[i].token == token {
			return &a.svcs[i]
		}
	}
	return nil
}

func (a *pluginAPIImpl) Resolve(token *ServiceToken) (interface{}, error) {
	if s := a.stagedService(token); s != nil {
		return s.impl, nil
	}
	impl, err := a.services.Resolve(token)
	if err != nil {
		if pe, ok := err.(*Error); ok {
			pe.Plugin = a.name
		}
		return nil, err
	}
	return impl, nil
}

func (a *pluginAPIImpl) Logger() logger.Logger { return a.log }

func (a *pluginAPIImpl) Settings() Settings { return a.settings }

// commit applies staged registrations. It is a no-op when staging is off.
func (a *pluginAPIImpl) commit() error {
	if !a.staging {
		return nil
	}
	for _, s := range a.svcs {
		if err := a.services.Register(s.token, s.impl, a.name); err != nil {
			return err
		}
	}
	for _, c := range a.cmds {
		_ = a.addCommand(c)
	}
	for _, h := range a.hookList {
		if err := a.hooks.Register(h.event, h.handler, a.name); err != nil {
			return err
		}
	}
	a.staging = false
	return nil
}

// discard drops staged registrations.
func (a *pluginAPIImpl) discard() {
	a.cmds, a.hookList, a.svcs = nil, nil, nil
}
