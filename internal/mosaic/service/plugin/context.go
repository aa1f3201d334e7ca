package plugin

import (
	"context"
	"io"
	"time"

	"github.com/kiosk404/mosaic/pkg/logger"
)

// Settings is the read-only view of shared configuration handed to plugins.
// *viper.Viper satisfies it.
type Settings interface {
	Get(key string) interface{}
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetStringSlice(key string) []string
	IsSet(key string) bool
	AllSettings() map[string]interface{}
}

// ServiceResolver resolves shared capabilities by token.
type ServiceResolver interface {
	Resolve(token *ServiceToken) (interface{}, error)
}

// ExecutionContext is created fresh for each invocation and passed to the
// command handler and every hook it triggers. It must not be retained after
// the invocation returns.
type ExecutionContext struct {
	ctx context.Context

	// InvocationID uniquely identifies this invocation.
	InvocationID string
	// Command is the requested command name.
	Command string
	// Plugin is the name of the plugin owning Command, empty when not found.
	Plugin string
	// StartedAt is when the engine began resolving the command.
	StartedAt time.Time
	// Args are the parsed arguments.
	Args Args

	Logger   logger.Logger
	Settings Settings
	Services ServiceResolver

	Out    io.Writer
	ErrOut io.Writer
}

// Context returns the invocation context. It is cancelled when the host is
// asked to stop, so long-running handlers should observe it.
func (ec *ExecutionContext) Context() context.Context {
	if ec.ctx == nil {
		return context.Background()
	}
	return ec.ctx
}

// Err is shorthand for Context().Err().
func (ec *ExecutionContext) Err() error {
	return ec.Context().Err()
}

// Resolve resolves a service for the running command.
func (ec *ExecutionContext) Resolve(token *ServiceToken) (interface{}, error) {
	return ec.Services.Resolve(token)
}
