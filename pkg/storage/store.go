package storage

import (
	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/types"
)

// Store defines the interface for the audit history
// This is implemented by BoltDB-backed storage
type Store interface {
	// Invocations
	SaveInvocation(record *types.InvocationRecord) error
	GetInvocation(id string) (*types.InvocationRecord, error)
	ListInvocations(limit int) ([]*types.InvocationRecord, error)

	// Events
	SaveEvent(event *events.Event) error
	ListEvents(limit int) ([]*events.Event, error)

	// Utility
	Close() error
}
