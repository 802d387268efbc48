package interfaces

import (
	"context"

	"waregate/pkg/types"
)

// InventoryClient talks to the inventory system of record. The gateway never
// owns inventory state: commands are forwarded as-is and status reads
// reflect whatever the upstream reports.
type InventoryClient interface {
	// PlaceMaterial asks the inventory service to place a material in a slot.
	PlaceMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error)

	// RemoveMaterial asks the inventory service to remove a material.
	RemoveMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error)

	// MoveMaterial asks the inventory service to move a material between slots.
	MoveMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error)

	// GetShelfStatus fetches the authoritative shelf snapshot. Transport and
	// non-2xx failures wrap ErrUpstreamUnavailable.
	GetShelfStatus(ctx context.Context, shelfID string) (*types.ShelfStatus, error)
}

// Connection is the transport-agnostic view of a connected client used by
// the room directory and the orchestrator. Implementations must make
// WriteJSON safe for concurrent use.
type Connection interface {
	// ID returns the connection identifier assigned at upgrade time.
	ID() string

	// Principal returns the identity attached by admission control.
	Principal() types.Principal

	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources.
	Close() error
}
