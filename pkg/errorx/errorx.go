// Package errorx provides errors that carry a registered code, so callers at
// the edge of the process can map any wrapped failure to an exit status.
package errorx

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Coder describes a registered error code.
type Coder interface {
	// Code is the unique numeric error code.
	Code() int
	// ExitCode is the process exit status for this code.
	ExitCode() int
	// String is the user-facing description.
	String() string
}

type defaultCoder struct {
	code int
	exit int
	msg  string
}

func (c defaultCoder) Code() int      { return c.code }
func (c defaultCoder) ExitCode() int  { return c.exit }
func (c defaultCoder) String() string { return c.msg }

// UnknownCode is reported for errors that carry no registered code.
const UnknownCode = 1

var (
	unknownCoder Coder = defaultCoder{code: UnknownCode, exit: 1, msg: "An internal error occurred"}

	codeMu sync.RWMutex
	codes  = map[int]Coder{UnknownCode: unknownCoder}
)

// NewCoder returns a Coder for use with Register/MustRegister.
func NewCoder(code, exitCode int, msg string) Coder {
	return defaultCoder{code: code, exit: exitCode, msg: msg}
}

// Register registers a coder, replacing any existing one with the same code.
func Register(c Coder) {
	if c.Code() == UnknownCode {
		panic(fmt.Sprintf("code %d is reserved", UnknownCode))
	}
	codeMu.Lock()
	defer codeMu.Unlock()
	codes[c.Code()] = c
}

// MustRegister registers a coder and panics if the code is already taken.
func MustRegister(c Coder) {
	if c.Code() == UnknownCode {
		panic(fmt.Sprintf("code %d is reserved", UnknownCode))
	}
	codeMu.Lock()
	defer codeMu.Unlock()
	if _, ok := codes[c.Code()]; ok {
		panic(fmt.Sprintf("code %d already registered", c.Code()))
	}
	codes[c.Code()] = c
}

type withCode struct {
	err   error
	code  int
	cause error
	*stack
}

type stack struct {
	st errors.StackTrace
}

func callers() *stack {
	// errors.New captures the stack at the call site; only the trace is kept.
	type stackTracer interface{ StackTrace() errors.StackTrace }
	st := errors.New("").(stackTracer).StackTrace()
	if len(st) > 2 {
		st = st[2:]
	}
	return &stack{st: st}
}

// StackTrace returns the captured stack trace.
func (s *stack) StackTrace() errors.StackTrace { return s.st }

// WithCode returns a new coded error.
func WithCode(code int, format string, args ...interface{}) error {
	return &withCode{
		err:   fmt.Errorf(format, args...),
		code:  code,
		stack: callers(),
	}
}

// WrapC wraps err with a code and message.
func WrapC(err error, code int, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &withCode{
		err:   fmt.Errorf(format, args...),
		code:  code,
		cause: err,
		stack: callers(),
	}
}

func (w *withCode) Error() string {
	msg := w.err.Error()
	switch {
	case w.cause == nil:
		return msg
	case msg == "":
		return w.cause.Error()
	}
	return fmt.Sprintf("%s: %s", msg, w.cause.Error())
}

func (w *withCode) Unwrap() error { return w.cause }

// Code returns the code carried by w.
func (w *withCode) Code() int { return w.code }

// ParseCoder returns the coder of the outermost coded error in err's chain.
// Errors without a registered code yield the unknown coder; nil yields nil.
func ParseCoder(err error) Coder {
	if err == nil {
		return nil
	}
	var w *withCode
	if errors.As(err, &w) {
		codeMu.RLock()
		defer codeMu.RUnlock()
		if c, ok := codes[w.code]; ok {
			return c
		}
	}
	return unknownCoder
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code int) bool {
	for err != nil {
		if w, ok := err.(*withCode); ok && w.code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
