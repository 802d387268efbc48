package types

import (
	"time"
)

// Slot occupancy states inside a shelf snapshot.
const (
	SlotStatusEmpty    = "empty"
	SlotStatusOccupied = "occupied"
	SlotStatusReserved = "reserved"
	SlotStatusError    = "error"
)

// ShelfStatusError is the wire-level status string clients receive when the
// gateway could not determine a shelf's real state. It is a degraded
// sentinel, not an actual shelf state.
const ShelfStatusError = "error"

// Session is the ephemeral per-connection record of which shelf room and
// operator a connection represents. It is owned exclusively by the realtime
// orchestrator and lives in the session store with a fixed expiry.
type Session struct {
	ConnectionID string    `json:"connection_id"`
	ShelfID      string    `json:"shelf_id"`
	OperatorID   string    `json:"operator_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

// SlotInfo describes one slot within a shelf snapshot.
type SlotInfo struct {
	SlotID     string `json:"slotId"`
	Row        int    `json:"row"`
	Column     int    `json:"column"`
	Status     string `json:"status"`
	MaterialID string `json:"materialId,omitempty"`
}

// ShelfStatus is the full last-known snapshot of a shelf. Cache entries are
// always written as complete snapshots with counts recomputed from the slot
// list, so empty + occupied == total holds for every stored entry.
type ShelfStatus struct {
	ShelfID       string     `json:"shelfId"`
	Status        string     `json:"status"`
	TotalSlots    int        `json:"totalSlots"`
	EmptySlots    int        `json:"emptySlots"`
	OccupiedSlots int        `json:"occupiedSlots"`
	Slots         []SlotInfo `json:"slots"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// RecomputeCounts derives the slot counters from the slot list. A slot with
// a material or an occupied/reserved status counts as occupied.
func (s *ShelfStatus) RecomputeCounts() {
	s.TotalSlots = len(s.Slots)
	occupied := 0
	for _, slot := range s.Slots {
		if slot.MaterialID != "" || slot.Status == SlotStatusOccupied || slot.Status == SlotStatusReserved {
			occupied++
		}
	}
	s.OccupiedSlots = occupied
	s.EmptySlots = s.TotalSlots - occupied
}

// StatusResult is the explicit outcome of a shelf status read. Callers must
// check Available instead of inspecting a status string: an unavailable
// result means "unknown", never a real shelf state.
type StatusResult struct {
	ShelfID   string
	Available bool
	Status    *ShelfStatus
}

// Payload returns the wire shape pushed to clients. Unavailable reads keep
// the {shelfId, status: "error"} form the front ends already understand.
func (r StatusResult) Payload() interface{} {
	if r.Available && r.Status != nil {
		return r.Status
	}
	return map[string]string{
		"shelfId": r.ShelfID,
		"status":  ShelfStatusError,
	}
}

// Principal is the identity attached to a connection by admission control.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Principal roles. Admin consoles are placed in the admin_dashboard room at
// connect time; workers join shelf rooms explicitly.
const (
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// StatsDate formats a timestamp as the calendar-day bucket used by the
// per-shelf stats counters.
func StatsDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
