package types

import (
	"encoding/json"
	"time"
)

// Server-emitted message labels on the WebSocket channel.
const (
	ServerShelfStatus         = "shelf_status"
	ServerInventoryUpdate     = "inventory_update"
	ServerGlobalUpdate        = "global_update"
	ServerShelfStatusChanged  = "shelf_status_changed"
	ServerShelfStatusUpdate   = "shelf_status_update"
	ServerHealthAlert         = "health_alert"
	ServerSystemAlert         = "system_alert"
	ServerCriticalSystemAlert = "critical_system_alert"
	ServerAuditLog            = "audit_log"
	ServerShelfMessage        = "shelf_message"
	ServerOperationResponse   = "operation_response"
	ServerError               = "error"
	ServerPong                = "pong"
)

// Client-emitted message labels.
const (
	ClientJoinShelf        = "join_shelf"
	ClientOperationRequest = "operation_request"
	ClientPing             = "ping"
)

// Operation types accepted in operation_request messages. The gateway only
// forwards these to the inventory service; it never validates them itself.
const (
	OperationPlace  = "place"
	OperationRemove = "remove"
	OperationMove   = "move"
)

// Envelope is the wire frame for every message in either direction:
// {"type": <label>, "data": <payload>}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Push wraps a labeled payload in the outbound wire frame. WriteJSON-side
// counterpart of Envelope, which keeps inbound data raw.
func Push(label string, payload interface{}) interface{} {
	return struct {
		Type string      `json:"type"`
		Data interface{} `json:"data,omitempty"`
	}{Type: label, Data: payload}
}

// JoinShelfRequest is the payload of a join_shelf client message.
type JoinShelfRequest struct {
	ShelfID    string `json:"shelfId"`
	OperatorID string `json:"operatorId"`
}

// OperationRequest is the payload of an operation_request client message.
// Operator and shelf identifiers are attached server-side from the session.
type OperationRequest struct {
	Type       string `json:"type"`
	MaterialID string `json:"materialId,omitempty"`
	SlotID     string `json:"slotId,omitempty"`
	FromSlotID string `json:"fromSlotId,omitempty"`
	ToSlotID   string `json:"toSlotId,omitempty"`
}

// OperationResponse is the single response envelope sent back to the
// requesting connection only. It acknowledges the command path; the matching
// broadcast arrives later on an independent channel, or not at all.
type OperationResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// InventoryUpdatePayload is broadcast to the shelf room on material events.
type InventoryUpdatePayload struct {
	Type string          `json:"type"`
	Data InventoryChange `json:"data"`
}

// InventoryChange is the detail body of an inventory update.
type InventoryChange struct {
	ShelfID    string    `json:"shelfId"`
	SlotID     string    `json:"slotId"`
	MaterialID string    `json:"materialId"`
	OperatorID string    `json:"operatorId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// GlobalUpdatePayload is the admin-dashboard summary of an inventory event.
type GlobalUpdatePayload struct {
	Type string       `json:"type"`
	Data *DomainEvent `json:"data"`
}

// ShelfStatusChangedPayload is broadcast to the shelf room when the shelf's
// operational status flips.
type ShelfStatusChangedPayload struct {
	ShelfID   string    `json:"shelfId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthAlertPayload is broadcast on shelf health alerts.
type HealthAlertPayload struct {
	Type        string    `json:"type"`
	ShelfID     string    `json:"shelfId"`
	HealthScore float64   `json:"healthScore"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// SystemAlertPayload goes to the admin dashboard on every system alert.
type SystemAlertPayload struct {
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// CriticalAlertPayload is the trimmed body broadcast to every connection,
// regardless of room, when a system alert is critical.
type CriticalAlertPayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ShelfMessagePayload carries human-readable instructions and physical
// operation outcomes into a shelf room.
type ShelfMessagePayload struct {
	Type        string    `json:"type"`
	OperationID string    `json:"operationId,omitempty"`
	SlotID      string    `json:"slotId,omitempty"`
	MaterialID  string    `json:"materialId,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorPayload is sent to a single connection when a request fails.
type ErrorPayload struct {
	Message string `json:"message"`
}
