package plugin

import (
	"fmt"
	"sync"

	"github.com/kiosk404/mosaic/pkg/logger"
)

// ServiceToken is an opaque key for a shared capability. Tokens compare by
// identity, so two tokens with the same name are still distinct keys.
type ServiceToken struct {
	name string
}

// NewServiceToken returns a new, unique token. The name is for diagnostics.
func NewServiceToken(name string) *ServiceToken {
	return &ServiceToken{name: name}
}

func (t *ServiceToken) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Token is a ServiceToken that also records the implementation type, so
// ResolveAs can hand back a typed value.
type Token[T any] struct {
	*ServiceToken
}

// NewToken returns a new typed token.
func NewToken[T any](name string) Token[T] {
	return Token[T]{ServiceToken: NewServiceToken(name)}
}

// Built-in tokens, registered by the host before the load phase.
var (
	LoggerToken = NewToken[logger.Logger]("logger")
	ConfigToken = NewToken[Settings]("config")
)

type serviceEntry struct {
	impl    interface{}
	owner   string
	builtin bool
}

// ServiceRegistry maps tokens to shared implementations.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[*ServiceToken]serviceEntry
	sealed   bool
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[*ServiceToken]serviceEntry)}
}

// RegisterBuiltin sets a host-owned implementation. Plugins can resolve but
// never overwrite it.
func (r *ServiceRegistry) RegisterBuiltin(token *ServiceToken, impl interface{}) error {
	return r.set(token, impl, "", true, false)
}

// Override replaces any implementation for token, built-in or not. Only the
// host calls it.
func (r *ServiceRegistry) Override(token *ServiceToken, impl interface{}) error {
	return r.set(token, impl, "", true, true)
}

// Register sets the implementation for token on behalf of pluginName. A
// token can be set at most once.
func (r *ServiceRegistry) Register(token *ServiceToken, impl interface{}, pluginName string) error {
	return r.set(token, impl, pluginName, false, false)
}

func (r *ServiceRegistry) set(token *ServiceToken, impl interface{}, owner string, builtin, overwrite bool) error {
	if token == nil {
		return fmt.Errorf("service token must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("service registry is read-only after the load phase")
	}
	if existing, ok := r.services[token]; ok && !overwrite {
		holder := existing.owner
		if existing.builtin {
			holder = "host"
		}
		return &Error{
			Kind:   KindNameConflict,
			Plugin: owner,
			Err:    fmt.Errorf("service %q is already provided by %s", token, holder),
		}
	}
	r.services[token] = serviceEntry{impl: impl, owner: owner, builtin: builtin}
	return nil
}

// Resolve returns the exact instance registered for token.
func (r *ServiceRegistry) Resolve(token *ServiceToken) (interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.services[token]
	if !ok {
		return nil, &Error{Kind: KindServiceNotFound, Err: fmt.Errorf("no implementation registered for %q", token)}
	}
	return e.impl, nil
}

// Has reports whether token has an implementation.
func (r *ServiceRegistry) Has(token *ServiceToken) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[token]
	return ok
}

func (r *ServiceRegistry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// ResolveAs resolves token and asserts the implementation type.
func ResolveAs[T any](r ServiceResolver, token Token[T]) (T, error) {
	var zero T
	v, err := r.Resolve(token.ServiceToken)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", token, v)
	}
	return typed, nil
}

// MustResolveAs is ResolveAs that panics on failure. Inside registration and
// handlers the panic is contained like any other plugin failure.
func MustResolveAs[T any](r ServiceResolver, token Token[T]) T {
	v, err := ResolveAs(r, token)
	if err != nil {
		panic(err)
	}
	return v
}
