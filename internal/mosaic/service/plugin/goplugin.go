package plugin

import (
	"context"
	"fmt"
	goplugin "plugin"
)

// SharedObjectLoader opens Go plugin shared objects (go build
// -buildmode=plugin). The object must export Plugin or NewPlugin.
type SharedObjectLoader struct{}

// Load opens the shared object at ref.
func (SharedObjectLoader) Load(ctx context.Context, ref string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := goplugin.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared object: %w", err)
	}
	return sharedObject{p: p}, nil
}

type sharedObject struct {
	p *goplugin.Plugin
}

func (s sharedObject) Lookup(symbol string) (interface{}, error) {
	sym, err := s.p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return sym, nil
}
