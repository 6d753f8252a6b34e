// Package store persists the local catalog of agent descriptors.
//
// The catalog replaces the environment-variable persistence the system grew
// up with: flows receive a Store explicitly instead of reading process
// environment as a database.
package store

import (
	"context"
	"errors"

	"github.com/fintalk-ai/agenthub/internal/model"
)

// ErrNotFound is returned when a requested descriptor does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the durable catalog of agent descriptors, keyed by the remote
// service's agent ID.
type Store interface {
	// Put inserts or replaces a descriptor.
	Put(ctx context.Context, desc model.AgentDescriptor) error

	// Get retrieves a descriptor by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (model.AgentDescriptor, error)

	// List returns all descriptors ordered by creation time, oldest first.
	List(ctx context.Context) ([]model.AgentDescriptor, error)

	// Delete removes a descriptor. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Close releases underlying resources.
	Close() error
}
