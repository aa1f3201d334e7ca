package repo

import (
	"context"

	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
)

// InvocationRepository defines the persistence interface for the
// invocation journal.
type InvocationRepository interface {
	// Append stores a new invocation.
	Append(ctx context.Context, inv *entity.Invocation) error
	// List returns invocations matching q, newest first.
	List(ctx context.Context, q entity.Query) ([]*entity.Invocation, error)
	// Count returns the number of stored invocations.
	Count(ctx context.Context) (int, error)
}
