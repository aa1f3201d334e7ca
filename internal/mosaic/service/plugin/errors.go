package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiosk404/mosaic/pkg/errorx"
)

// ErrorKind classifies a runtime failure. Every kind is contained at the
// smallest unit that produced it (a source, a plugin, a hook or a command).
type ErrorKind int

const (
	// KindManifestInvalid means validation rejected a candidate.
	KindManifestInvalid ErrorKind = iota + 1
	// KindLoadFailure means module loading, registration or activation failed.
	KindLoadFailure
	// KindNameConflict means a plugin or command name was already taken.
	KindNameConflict
	// KindServiceNotFound means a service token had no registered implementation.
	KindServiceNotFound
	// KindCommandNotFound means the requested command is not registered.
	KindCommandNotFound
	// KindHandlerError means a command handler failed or panicked.
	KindHandlerError
	// KindHookError means a hook handler failed or panicked.
	KindHookError
)

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrManifestInvalid  = errors.New("manifest invalid")
	ErrLoadFailure      = errors.New("load failure")
	ErrNameConflict     = errors.New("name conflict")
	ErrServiceNotFound  = errors.New("service not found")
	ErrCommandNotFound  = errors.New("unknown command")
	ErrHandlerError     = errors.New("handler error")
	ErrHookError        = errors.New("hook error")
	errUnknownErrorKind = errors.New("unknown error kind")
)

// Error codes registered with errorx. The exit code carried by each coder is
// what the front end returns to the shell.
const (
	CodeManifestInvalid = 110001
	CodeLoadFailure     = 110002
	CodeNameConflict    = 110003
	CodeServiceNotFound = 110004

	CodeCommandNotFound = 110101
	CodeHandlerError    = 110102
	CodeHookError       = 110103
)

func init() {
	errorx.MustRegister(errorx.NewCoder(CodeManifestInvalid, 1, "Plugin manifest is invalid"))
	errorx.MustRegister(errorx.NewCoder(CodeLoadFailure, 1, "Plugin failed to load"))
	errorx.MustRegister(errorx.NewCoder(CodeNameConflict, 1, "Name is already registered"))
	errorx.MustRegister(errorx.NewCoder(CodeServiceNotFound, 1, "Service is not registered"))
	errorx.MustRegister(errorx.NewCoder(CodeCommandNotFound, int(ExitUnknownCommand), "Unknown command"))
	errorx.MustRegister(errorx.NewCoder(CodeHandlerError, int(ExitFailure), "Command failed"))
	errorx.MustRegister(errorx.NewCoder(CodeHookError, 1, "Hook failed"))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindManifestInvalid:
		return ErrManifestInvalid
	case KindLoadFailure:
		return ErrLoadFailure
	case KindNameConflict:
		return ErrNameConflict
	case KindServiceNotFound:
		return ErrServiceNotFound
	case KindCommandNotFound:
		return ErrCommandNotFound
	case KindHandlerError:
		return ErrHandlerError
	case KindHookError:
		return ErrHookError
	}
	return errUnknownErrorKind
}

// Code returns the errorx code registered for k.
func (k ErrorKind) Code() int {
	switch k {
	case KindManifestInvalid:
		return CodeManifestInvalid
	case KindLoadFailure:
		return CodeLoadFailure
	case KindNameConflict:
		return CodeNameConflict
	case KindServiceNotFound:
		return CodeServiceNotFound
	case KindCommandNotFound:
		return CodeCommandNotFound
	case KindHandlerError:
		return CodeHandlerError
	case KindHookError:
		return CodeHookError
	}
	return errorx.UnknownCode
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// Error is the structured error produced by the runtime. Only the fields
// relevant to the failure are set.
type Error struct {
	Kind    ErrorKind
	Plugin  string
	Source  string
	Command string
	Event   HookEvent
	Err     error
}

func (e *Error) Error() string {
	var ctx []string
	if e.Plugin != "" {
		ctx = append(ctx, fmt.Sprintf("plugin %q", e.Plugin))
	}
	if e.Source != "" {
		ctx = append(ctx, fmt.Sprintf("source %q", e.Source))
	}
	if e.Command != "" {
		ctx = append(ctx, fmt.Sprintf("command %q", e.Command))
	}
	if e.Event != "" {
		ctx = append(ctx, fmt.Sprintf("event %q", e.Event))
	}

	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error { return e.Err }

// coded wraps err with the errorx code for its kind so the front end can map
// it to an exit status.
func coded(e *Error) error {
	return errorx.WrapC(e, e.Kind.Code(), "")
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
