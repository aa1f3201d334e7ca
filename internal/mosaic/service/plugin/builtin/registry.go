package builtin

import (
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin/builtin/history"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin/builtin/sys"
)

// NewInTreeRegistry creates the in-tree plugin registry with the default
// plugins. They are served to builtin:<name> sources:
// - history: invocation journal (needs the history service)
// - sys: host utilities
func NewInTreeRegistry() *plugin.InTreeRegistry {
	registry := plugin.NewInTreeRegistry()

	registry.MustRegister(history.PluginName, history.Factory)
	registry.MustRegister(sys.PluginName, sys.Factory)

	return registry
}
