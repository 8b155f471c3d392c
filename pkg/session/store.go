// Package session provides pluggable persistence for ConversationState,
// keyed by conversation id. Backends are swappable (in-memory, redis)
// without changing node contracts.
package session

import (
	"context"
	"errors"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// ErrNotFound is returned when no state exists for a conversation id.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversation state between turns. Implementations must
// provide per-key isolation: operations on different conversation ids never
// contend, and Lock serializes concurrent turns on the same id.
type Store interface {
	// Get returns the state for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.ConversationState, error)

	// Put stores the state for id, resetting its TTL.
	Put(ctx context.Context, id string, state *models.ConversationState) error

	// Delete removes the state for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Lock acquires the per-conversation lock and returns its release
	// function. Turns on the same conversation are serialized through it.
	Lock(ctx context.Context, id string) (func(), error)

	// Close releases backend resources.
	Close() error
}
