package entity

import "time"

// Invocation is one journaled command execution.
type Invocation struct {
	// ID is the invocation ID assigned by the execution engine.
	ID string `json:"id"`
	// Command is the requested command name.
	Command string `json:"command"`
	// Plugin is the plugin that owns Command.
	Plugin string `json:"plugin"`
	// Success reports whether the handler returned without error.
	Success bool `json:"success"`
	// Error is the handler error message, empty on success.
	Error string `json:"error,omitempty"`
	// StartedAt is when the engine started resolving the command.
	StartedAt time.Time `json:"started_at"`
	// Duration is the time from StartedAt until postRun.
	Duration time.Duration `json:"duration"`
}

// Query filters a journal listing. The zero value lists everything,
// newest first.
type Query struct {
	// Limit caps the number of results; 0 means no cap.
	Limit int
	// Command restricts results to one command name when set.
	Command *string
	// FailedOnly restricts results to failed invocations.
	FailedOnly bool
}

// Match reports whether inv passes the non-limit filters of q.
func (q Query) Match(inv *Invocation) bool {
	if q.Command != nil && inv.Command != *q.Command {
		return false
	}
	if q.FailedOnly && inv.Success {
		return false
	}
	return true
}
