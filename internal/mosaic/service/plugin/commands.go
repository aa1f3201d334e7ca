package plugin

import (
	"fmt"
	"sync"

	"github.com/kiosk404/mosaic/pkg/logger"
)

// CommandEntry is a live command together with the plugin that owns it.
type CommandEntry struct {
	Definition CommandDefinition
	Plugin     string
}

// CommandRegistry maps command names to their live definition. The first
// successful registration of a name wins; names keep insertion order.
type CommandRegistry struct {
	mu      sync.RWMutex
	entries map[string]*CommandEntry
	order   []string
	sealed  bool
}

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{entries: make(map[string]*CommandEntry)}
}

// Add registers cmd on behalf of pluginName. A name that is already taken is
// rejected with a logged conflict and the earlier definition stays live.
func (r *CommandRegistry) Add(cmd CommandDefinition, pluginName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("command registry is read-only after the load phase")
	}
	if existing, ok := r.entries[cmd.Name]; ok {
		logger.Warn("[Plugin] command %q from plugin %q conflicts with plugin %q, keeping %q",
			cmd.Name, pluginName, existing.Plugin, existing.Plugin)
		return &Error{
			Kind:    KindNameConflict,
			Plugin:  pluginName,
			Command: cmd.Name,
			Err:     fmt.Errorf("already registered by plugin %q", existing.Plugin),
		}
	}

	r.entries[cmd.Name] = &CommandEntry{Definition: cmd, Plugin: pluginName}
	r.order = append(r.order, cmd.Name)
	return nil
}

// Has reports whether name is registered.
func (r *CommandRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Resolve looks up a command by name.
func (r *CommandRegistry) Resolve(name string) (CommandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return CommandEntry{}, false
	}
	return *e, true
}

// List returns all live commands in registration order.
func (r *CommandRegistry) List() []CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CommandEntry, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, *r.entries[name])
	}
	return result
}

// Len returns the number of live commands.
func (r *CommandRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *CommandRegistry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
