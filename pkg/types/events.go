package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event types as published on the durable log. The declared event_type of a
// message, never the topic it arrived on, decides how the gateway handles it.
const (
	EventMaterialPlaced  = "material.placed"
	EventMaterialRemoved = "material.removed"
	EventMaterialMoved   = "material.moved"

	EventShelfStatusChanged = "shelf.status_changed"
	EventShelfHealthAlert   = "shelf.health_alert"

	EventSystemAlert = "system.alert"
	EventAuditLog    = "audit.log"

	EventPhysicalPlacementRequested = "physical.placement.requested"
	EventPhysicalPlacementConfirmed = "physical.placement.confirmed"
	EventPhysicalPlacementFailed    = "physical.placement.failed"
	EventPhysicalPlacementUnplanned = "physical.placement.unplanned"

	EventPhysicalRemovalRequested = "physical.removal.requested"
	EventPhysicalRemovalConfirmed = "physical.removal.confirmed"
	EventPhysicalRemovalFailed    = "physical.removal.failed"
	EventPhysicalRemovalUnplanned = "physical.removal.unplanned"
)

// Alert severity levels. Critical is the only level that escapes room scoping.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// EventFamily groups event types for handler dispatch.
type EventFamily int

const (
	FamilyUnknown EventFamily = iota
	FamilyInventory
	FamilyShelf
	FamilySystem
	FamilyPhysical
)

var (
	ErrMalformedEvent   = errors.New("malformed domain event")
	ErrUnknownEventType = errors.New("unknown event type")
)

// DomainEvent is the JSON envelope carried on every log topic. It is a tagged
// union: EventType selects which of the optional fields are meaningful.
type DomainEvent struct {
	EventID    string `json:"event_id,omitempty"`
	EventType  string `json:"event_type"`
	Version    string `json:"version,omitempty"`
	Source     string `json:"source,omitempty"`
	ShelfID    string `json:"shelf_id,omitempty"`
	SlotID     string `json:"slot_id,omitempty"`
	FromSlotID string `json:"from_slot_id,omitempty"`
	MaterialID string `json:"material_id,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`

	// Shelf status change fields.
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// Health and system alert fields.
	HealthScore float64                `json:"health_score,omitempty"`
	AlertType   string                 `json:"alert_type,omitempty"`
	Severity    string                 `json:"severity,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Physical placement/removal sub-protocol.
	OperationID string `json:"operation_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ParseDomainEvent decodes a log message payload. A payload that is not JSON
// or carries no event_type is rejected; the consumer drops such messages
// rather than stopping the partition.
func ParseDomainEvent(data []byte) (*DomainEvent, error) {
	var event DomainEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}
	return &event, nil
}

// Family classifies an event type into its dispatch family.
func Family(eventType string) EventFamily {
	switch {
	case strings.HasPrefix(eventType, "material."):
		return FamilyInventory
	case strings.HasPrefix(eventType, "shelf."):
		return FamilyShelf
	case eventType == EventSystemAlert || eventType == EventAuditLog:
		return FamilySystem
	case strings.HasPrefix(eventType, "physical.placement.") ||
		strings.HasPrefix(eventType, "physical.removal."):
		return FamilyPhysical
	default:
		return FamilyUnknown
	}
}

// MetadataShelfID extracts a shelf identifier from alert metadata, if any.
// System alerts carry the shelf reference in metadata rather than as a
// top-level field.
func (e *DomainEvent) MetadataShelfID() string {
	if e.ShelfID != "" {
		return e.ShelfID
	}
	if e.Metadata == nil {
		return ""
	}
	if id, ok := e.Metadata["shelf_id"].(string); ok {
		return id
	}
	return ""
}
