// Package graph abstracts the bolt-protocol graph database used by the
// graph-backed memory store.
package graph

import "context"

// Record represents a single result row from a query.
type Record map[string]any

// Reader provides read-only graph operations.
type Reader interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// Writer provides write graph operations.
type Writer interface {
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error
}

// Driver is the full interface for graph database access.
type Driver interface {
	Reader
	Writer

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
}
