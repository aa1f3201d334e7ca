package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/safego"
)

// HookEvent identifies a lifecycle event that plugins can subscribe to.
// The set is open: plugins may dispatch and subscribe to their own events.
type HookEvent string

const (
	// HookPreRun fires before a resolved command's handler runs.
	HookPreRun HookEvent = "preRun"

	// HookPostRun fires after the handler returns, with Success set.
	HookPostRun HookEvent = "postRun"

	// HookOnError fires when the handler fails, before postRun.
	HookOnError HookEvent = "onError"

	// HookCommandNotFound fires when the requested command is not registered.
	HookCommandNotFound HookEvent = "commandNotFound"
)

// HookPayload carries the event-specific data of a dispatch. Each handler
// receives its own copy, including its own Args and ExecutionContext, so a
// hook cannot alter what later hooks or the command handler observe.
type HookPayload struct {
	Event   HookEvent
	Exec    *ExecutionContext
	Command string
	Args    Args
	// Err is the handler error for onError and failed postRun dispatches.
	Err error
	// Success is set for postRun.
	Success bool
}

// HookHandler is the callback for a lifecycle event.
type HookHandler func(ctx context.Context, payload *HookPayload) error

// HookFailure records one handler that failed during a dispatch.
type HookFailure struct {
	Plugin string
	Err    error
}

// DispatchReport summarizes one dispatch.
type DispatchReport struct {
	Event    HookEvent
	Invoked  int
	Failures []HookFailure
}

// OK reports whether every handler succeeded.
func (r *DispatchReport) OK() bool { return len(r.Failures) == 0 }

type hookEntry struct {
	pluginName string
	handler    HookHandler
}

// HookDispatcher holds an ordered handler list per event.
type HookDispatcher struct {
	mu     sync.RWMutex
	hooks  map[HookEvent][]hookEntry
	sealed bool
}

// NewHookDispatcher creates an empty dispatcher.
func NewHookDispatcher() *HookDispatcher {
	return &HookDispatcher{hooks: make(map[HookEvent][]hookEntry)}
}

// Register appends handler to event's list on behalf of pluginName.
func (d *HookDispatcher) Register(event HookEvent, handler HookHandler, pluginName string) error {
	if event == "" {
		return fmt.Errorf("hook event must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("hook handler for %q must not be nil", event)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return fmt.Errorf("hook dispatcher is read-only after the load phase")
	}
	d.hooks[event] = append(d.hooks[event], hookEntry{pluginName: pluginName, handler: handler})
	return nil
}

// Count returns the number of handlers registered for event.
func (d *HookDispatcher) Count(event HookEvent) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks[event])
}

// Dispatch runs every handler for event sequentially, in registration order.
// A failing or panicking handler is logged and recorded; the remaining
// handlers still run and nothing is propagated to the caller.
func (d *HookDispatcher) Dispatch(ctx context.Context, event HookEvent, payload HookPayload) *DispatchReport {
	d.mu.RLock()
	entries := make([]hookEntry, len(d.hooks[event]))
	copy(entries, d.hooks[event])
	d.mu.RUnlock()

	payload.Event = event
	report := &DispatchReport{Event: event}
	for _, e := range entries {
		p := payload
		p.Args = payload.Args.Clone()
		if payload.Exec != nil {
			ec := *payload.Exec
			ec.Args = p.Args
			p.Exec = &ec
		}
		report.Invoked++
		err := safego.Call(func() error { return e.handler(ctx, &p) })
		if err == nil {
			continue
		}
		logger.Warn("[Hooks] %s hook from plugin %q failed: %v", event, e.pluginName, err)
		report.Failures = append(report.Failures, HookFailure{
			Plugin: e.pluginName,
			Err:    &Error{Kind: KindHookError, Plugin: e.pluginName, Event: event, Err: err},
		})
	}
	return report
}

func (d *HookDispatcher) seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}
