package ingest

import (
	"context"
	"fmt"
	"log"

	"waregate/pkg/types"
)

// Notifier is the slice of the realtime orchestrator the event handlers use.
// Handlers are pure dispatch: given an event they call exactly one broadcast
// path and keep no state of their own.
type Notifier interface {
	BroadcastInventoryUpdate(ctx context.Context, event *types.DomainEvent)
	BroadcastShelfStatusChange(ctx context.Context, event *types.DomainEvent)
	BroadcastHealthAlert(ctx context.Context, event *types.DomainEvent)
	BroadcastSystemAlert(ctx context.Context, event *types.DomainEvent)
	BroadcastAuditLog(ctx context.Context, event *types.DomainEvent)
	BroadcastToShelf(ctx context.Context, shelfID string, message types.ShelfMessagePayload)
	PushShelfStatus(ctx context.Context, shelfID string)
}

// Dispatcher routes a parsed domain event to its family handler. The event's
// declared type selects the handler; the transport topic is never consulted.
type Dispatcher struct {
	inventory *InventoryEventHandler
	system    *SystemEventHandler
	physical  *PhysicalEventHandler
}

// NewDispatcher builds the dispatcher and its handlers over one notifier.
func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{
		inventory: &InventoryEventHandler{notifier: notifier},
		system:    &SystemEventHandler{notifier: notifier},
		physical:  &PhysicalEventHandler{notifier: notifier},
	}
}

// Dispatch hands the event to its family handler. Unknown families return
// ErrUnknownEventType; the caller logs and drops, never stops the partition.
func (d *Dispatcher) Dispatch(ctx context.Context, event *types.DomainEvent) error {
	switch types.Family(event.EventType) {
	case types.FamilyInventory:
		return d.inventory.Handle(ctx, event)
	case types.FamilyShelf, types.FamilySystem:
		return d.system.Handle(ctx, event)
	case types.FamilyPhysical:
		return d.physical.Handle(ctx, event)
	default:
		return fmt.Errorf("%w: %s", types.ErrUnknownEventType, event.EventType)
	}
}

// InventoryEventHandler translates material events into broadcasts.
type InventoryEventHandler struct {
	notifier Notifier
}

// Handle processes one inventory event. A move fans out as a removal from
// the source slot followed by a placement into the destination, matching
// what the front ends render.
func (h *InventoryEventHandler) Handle(ctx context.Context, event *types.DomainEvent) error {
	switch event.EventType {
	case types.EventMaterialPlaced, types.EventMaterialRemoved:
		h.notifier.BroadcastInventoryUpdate(ctx, event)
		return nil

	case types.EventMaterialMoved:
		removed := *event
		removed.EventType = types.EventMaterialRemoved
		removed.SlotID = event.FromSlotID
		h.notifier.BroadcastInventoryUpdate(ctx, &removed)

		placed := *event
		placed.EventType = types.EventMaterialPlaced
		h.notifier.BroadcastInventoryUpdate(ctx, &placed)
		return nil

	default:
		return fmt.Errorf("%w: inventory handler received %s", types.ErrUnknownEventType, event.EventType)
	}
}

// SystemEventHandler covers shelf status flips, health alerts, system
// alerts, and audit records.
type SystemEventHandler struct {
	notifier Notifier
}

// Handle processes one shelf or system event.
func (h *SystemEventHandler) Handle(ctx context.Context, event *types.DomainEvent) error {
	switch event.EventType {
	case types.EventShelfStatusChanged:
		h.notifier.BroadcastShelfStatusChange(ctx, event)
		return nil

	case types.EventShelfHealthAlert:
		h.notifier.BroadcastHealthAlert(ctx, event)
		return nil

	case types.EventSystemAlert:
		h.notifier.BroadcastSystemAlert(ctx, event)
		// Critical alerts that name a shelf are relayed into that room so
		// on-floor workers see them alongside the admin console.
		if event.Severity == types.SeverityCritical {
			if shelfID := event.MetadataShelfID(); shelfID != "" {
				h.notifier.BroadcastToShelf(ctx, shelfID, types.ShelfMessagePayload{
					Type:      "critical_alert",
					Message:   event.Message,
					Timestamp: event.Timestamp,
				})
			}
		}
		return nil

	case types.EventAuditLog:
		h.notifier.BroadcastAuditLog(ctx, event)
		return nil

	default:
		return fmt.Errorf("%w: system handler received %s", types.ErrUnknownEventType, event.EventType)
	}
}

// PhysicalEventHandler covers the physical placement/removal sub-protocol: a
// human confirming a sensor-observed state change against a previously
// requested operation.
type PhysicalEventHandler struct {
	notifier Notifier
}

// Handle processes one physical event. Requested events carry a
// human-readable instruction into the shelf room; outcome events
// additionally force a cache refresh and push the reconciled shelf status.
func (h *PhysicalEventHandler) Handle(ctx context.Context, event *types.DomainEvent) error {
	message, outcome, err := physicalMessage(event)
	if err != nil {
		return err
	}

	h.notifier.BroadcastToShelf(ctx, event.ShelfID, types.ShelfMessagePayload{
		Type:        physicalMessageType(outcome),
		OperationID: event.OperationID,
		SlotID:      event.SlotID,
		MaterialID:  event.MaterialID,
		Message:     message,
		Timestamp:   event.Timestamp,
	})

	if outcome {
		h.notifier.PushShelfStatus(ctx, event.ShelfID)
	}
	return nil
}

// physicalMessage renders the instruction or outcome text for a physical
// event and reports whether the event is an outcome (confirmed, failed,
// unplanned) rather than a request.
func physicalMessage(event *types.DomainEvent) (message string, outcome bool, err error) {
	switch event.EventType {
	case types.EventPhysicalPlacementRequested:
		return fmt.Sprintf("Place material %s into slot %s", event.MaterialID, event.SlotID), false, nil
	case types.EventPhysicalRemovalRequested:
		return fmt.Sprintf("Remove material %s from slot %s", event.MaterialID, event.SlotID), false, nil
	case types.EventPhysicalPlacementConfirmed:
		return fmt.Sprintf("Placement of material %s into slot %s confirmed", event.MaterialID, event.SlotID), true, nil
	case types.EventPhysicalRemovalConfirmed:
		return fmt.Sprintf("Removal of material %s from slot %s confirmed", event.MaterialID, event.SlotID), true, nil
	case types.EventPhysicalPlacementFailed:
		return fmt.Sprintf("Placement of material %s into slot %s failed", event.MaterialID, event.SlotID), true, nil
	case types.EventPhysicalRemovalFailed:
		return fmt.Sprintf("Removal of material %s from slot %s failed", event.MaterialID, event.SlotID), true, nil
	case types.EventPhysicalPlacementUnplanned:
		return fmt.Sprintf("Unplanned placement detected in slot %s", event.SlotID), true, nil
	case types.EventPhysicalRemovalUnplanned:
		return fmt.Sprintf("Unplanned removal detected in slot %s", event.SlotID), true, nil
	default:
		return "", false, fmt.Errorf("%w: physical handler received %s", types.ErrUnknownEventType, event.EventType)
	}
}

func physicalMessageType(outcome bool) string {
	if outcome {
		return "physical_outcome"
	}
	return "physical_instruction"
}

// logDropped is shared logging for events the consumer discards.
func logDropped(topic string, partition int32, offset int64, reason error) {
	log.Printf("Dropped log message: topic=%s partition=%d offset=%d: %v", topic, partition, offset, reason)
}
