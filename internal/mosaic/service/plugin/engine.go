package plugin

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/safego"
)

// ExitStatus is the process exit code of one invocation.
type ExitStatus int

const (
	ExitSuccess        ExitStatus = 0
	ExitFailure        ExitStatus = 1
	ExitUnknownCommand ExitStatus = 2
)

// InvocationState is a state of the per-invocation state machine:
//
//	Idle -> Resolving -> NotFound -> Reporting -> Idle
//	Idle -> Resolving -> Found -> PreHooks -> Running -> Success -> PostHooks -> Idle
//	Idle -> Resolving -> Found -> PreHooks -> Running -> Failed -> ErrorHooks -> PostHooks -> Idle
type InvocationState string

const (
	StateIdle       InvocationState = "idle"
	StateResolving  InvocationState = "resolving"
	StateNotFound   InvocationState = "not_found"
	StateReporting  InvocationState = "reporting"
	StateFound      InvocationState = "found"
	StatePreHooks   InvocationState = "pre_hooks"
	StateRunning    InvocationState = "running"
	StateSuccess    InvocationState = "success"
	StateFailed     InvocationState = "failed"
	StateErrorHooks InvocationState = "error_hooks"
	StatePostHooks  InvocationState = "post_hooks"
)

var transitions = map[InvocationState][]InvocationState{
	StateIdle:       {StateResolving},
	StateResolving:  {StateNotFound, StateFound},
	StateNotFound:   {StateReporting},
	StateReporting:  {StateIdle},
	StateFound:      {StatePreHooks},
	StatePreHooks:   {StateRunning},
	StateRunning:    {StateSuccess, StateFailed},
	StateSuccess:    {StatePostHooks},
	StateFailed:     {StateErrorHooks},
	StateErrorHooks: {StatePostHooks},
	StatePostHooks:  {StateIdle},
}

// invocation tracks the state of one Execute call.
type invocation struct {
	id    string
	state InvocationState
	trace []InvocationState
}

func newInvocation(id string) *invocation {
	return &invocation{id: id, state: StateIdle, trace: []InvocationState{StateIdle}}
}

func (inv *invocation) to(next InvocationState) {
	allowed := false
	for _, s := range transitions[inv.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		// A bug in the engine, not in plugin code.
		panic(fmt.Sprintf("invalid invocation transition %s -> %s", inv.state, next))
	}
	logger.Debug("[Engine] invocation %s %s -> %s", inv.id, inv.state, next)
	inv.state = next
	inv.trace = append(inv.trace, next)
}

// Engine resolves and runs commands against the host registries. Calls to
// Execute are serialized: one command runs to completion before the next.
type Engine struct {
	mu sync.Mutex

	commands *CommandRegistry
	hooks    *HookDispatcher
	services *ServiceRegistry
	settings Settings
	log      logger.Logger
	out      io.Writer
	errOut   io.Writer

	// lastTrace is the state trace of the most recent invocation.
	lastTrace []InvocationState
}

// Execute runs the named command. It always returns an exit status; the
// error is nil on success and describes the failure otherwise. Nothing
// raised by plugin code escapes.
func (e *Engine) Execute(ctx context.Context, name string, args Args) (ExitStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args = args.Clone()
	if args.Flags == nil {
		args.Flags = map[string]interface{}{}
	}
	ec := &ExecutionContext{
		ctx:          ctx,
		InvocationID: uuid.NewString(),
		Command:      name,
		StartedAt:    time.Now(),
		Args:         args,
		Settings:     e.settings,
		Services:     e.services,
		Out:          e.out,
		ErrOut:       e.errOut,
	}
	inv := newInvocation(ec.InvocationID)
	defer func() { e.lastTrace = inv.trace }()

	inv.to(StateResolving)
	entry, found := e.commands.Resolve(name)
	if !found {
		inv.to(StateNotFound)
		ec.Logger = e.log.With("command", name)
		e.hooks.Dispatch(ctx, HookCommandNotFound, HookPayload{Exec: ec, Command: name, Args: args})

		inv.to(StateReporting)
		err := &Error{Kind: KindCommandNotFound, Command: name, Err: fmt.Errorf("no plugin provides %q", name)}
		logger.Warn("[Engine] %v", err)
		inv.to(StateIdle)
		return ExitUnknownCommand, coded(err)
	}

	inv.to(StateFound)
	ec.Plugin = entry.Plugin
	ec.Logger = e.log.With("plugin", entry.Plugin).With("command", name)

	inv.to(StatePreHooks)
	e.hooks.Dispatch(ctx, HookPreRun, HookPayload{Exec: ec, Command: name, Args: args})

	inv.to(StateRunning)
	runErr := safego.Call(func() error { return entry.Definition.Run(ec, args) })

	if runErr == nil {
		inv.to(StateSuccess)
		inv.to(StatePostHooks)
		e.hooks.Dispatch(ctx, HookPostRun, HookPayload{Exec: ec, Command: name, Args: args, Success: true})
		inv.to(StateIdle)
		logger.Debug("[Engine] %q finished in %s", name, time.Since(ec.StartedAt))
		return ExitSuccess, nil
	}

	inv.to(StateFailed)
	logger.Debug("[Engine] %q failed: %v", name, runErr)

	inv.to(StateErrorHooks)
	e.hooks.Dispatch(ctx, HookOnError, HookPayload{Exec: ec, Command: name, Args: args, Err: runErr})

	inv.to(StatePostHooks)
	e.hooks.Dispatch(ctx, HookPostRun, HookPayload{Exec: ec, Command: name, Args: args, Err: runErr, Success: false})

	inv.to(StateIdle)
	return ExitFailure, coded(&Error{Kind: KindHandlerError, Plugin: entry.Plugin, Command: name, Err: runErr})
}

// LastTrace returns the state trace of the most recent invocation.
func (e *Engine) LastTrace() []InvocationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]InvocationState(nil), e.lastTrace...)
}
