package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"waregate/internal/rooms"
	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// Service is the realtime orchestrator: it owns session lifecycle, the
// shelf-status cache, stats counters, command delegation to the inventory
// system of record, and the broadcast primitives used by the event handlers.
//
// Every Broadcast* method is fire-and-forget: failures are logged and
// counted, never propagated. The command path (HandleOperationRequest) and
// the notification path (Broadcast* driven by the log consumer) are two
// independently-ordered channels; a client can see its operation succeed
// before, or without, ever seeing the matching broadcast.
type Service struct {
	directory *rooms.Directory
	sessions  interfaces.SessionStore
	cache     interfaces.StatusCache
	stats     interfaces.StatsRecorder
	inventory interfaces.InventoryClient

	eventsBroadcast    atomic.Int64
	broadcastFailures  atomic.Int64
	upstreamFailures   atomic.Int64
	sessionsCreated    atomic.Int64
	operationsAccepted atomic.Int64
	operationsRejected atomic.Int64
}

// NewService wires the orchestrator to its collaborators.
func NewService(directory *rooms.Directory, sessions interfaces.SessionStore, cache interfaces.StatusCache, stats interfaces.StatsRecorder, inventory interfaces.InventoryClient) *Service {
	return &Service{
		directory: directory,
		sessions:  sessions,
		cache:     cache,
		stats:     stats,
		inventory: inventory,
	}
}

// Register adds a freshly admitted connection to the room directory.
// Admin-role principals land in the admin_dashboard room immediately.
func (s *Service) Register(conn interfaces.Connection) {
	s.directory.Register(conn)
}

// JoinShelfRoom subscribes a connection to a shelf room, records its session
// with a fresh TTL, and pushes the current shelf status to that connection
// alone. Join is all-or-nothing: any failure leaves no partial session and
// reports an error to the client.
func (s *Service) JoinShelfRoom(ctx context.Context, conn interfaces.Connection, shelfID, operatorID string) {
	if !types.IsValidShelfID(shelfID) || !types.IsValidOperatorID(operatorID) {
		s.writeError(conn, "Invalid shelf or operator identifier")
		return
	}

	if err := s.directory.JoinShelf(conn, shelfID); err != nil {
		log.Printf("Failed to join shelf room: conn=%s shelf=%s: %v", conn.ID(), shelfID, err)
		s.writeError(conn, "Failed to join shelf room")
		return
	}

	session := &types.Session{
		ConnectionID: conn.ID(),
		ShelfID:      shelfID,
		OperatorID:   operatorID,
		JoinedAt:     time.Now(),
	}
	if err := s.sessions.PutSession(ctx, session); err != nil {
		// Roll the room membership back so a failed join leaves nothing.
		// On a re-join the directory already dropped the old shelf room, so
		// the previous session must go too; otherwise later operations would
		// run with the old shelf's identity.
		s.directory.Leave(rooms.ShelfRoom(shelfID), conn.ID())
		if delErr := s.sessions.DeleteSession(ctx, conn.ID()); delErr != nil {
			log.Printf("Failed to clear stale session: conn=%s: %v", conn.ID(), delErr)
		}
		log.Printf("Failed to store session: conn=%s shelf=%s: %v", conn.ID(), shelfID, err)
		s.writeError(conn, "Failed to join shelf room")
		return
	}
	s.sessionsCreated.Add(1)

	status := s.GetShelfStatus(ctx, shelfID)
	if err := conn.WriteJSON(types.Push(types.ServerShelfStatus, status.Payload())); err != nil {
		log.Printf("Failed to push shelf status: conn=%s shelf=%s: %v", conn.ID(), shelfID, err)
	}

	log.Printf("Client joined shelf room: conn=%s shelf=%s operator=%s", conn.ID(), shelfID, operatorID)
}

// HandleOperationRequest delegates a client command to the inventory system
// of record, attaching the operator and shelf identifiers from the caller's
// session. The response goes to the requesting connection only, never the
// room. The orchestrator does not broadcast or touch the cache here; that
// happens later when the resulting domain event arrives on the log.
func (s *Service) HandleOperationRequest(ctx context.Context, conn interfaces.Connection, req *types.OperationRequest) {
	session, err := s.sessions.GetSession(ctx, conn.ID())
	if err != nil {
		if !errors.Is(err, interfaces.ErrSessionNotFound) {
			log.Printf("Session lookup failed: conn=%s: %v", conn.ID(), err)
		}
		s.operationsRejected.Add(1)
		s.writeOperationResponse(conn, types.OperationResponse{
			Success: false,
			Error:   "Session not found",
		})
		return
	}

	// An active connection keeps its session alive: the expiry exists to
	// clean up after clients that vanish uncleanly, not to cut off a client
	// that is still issuing operations.
	if err := s.sessions.PutSession(ctx, session); err != nil {
		log.Printf("Failed to refresh session: conn=%s: %v", conn.ID(), err)
	}

	if !types.IsValidOperationType(req.Type) {
		s.operationsRejected.Add(1)
		s.writeOperationResponse(conn, types.OperationResponse{
			Success: false,
			Error:   fmt.Sprintf("Unknown operation type: %s", req.Type),
		})
		return
	}

	var result interface{}
	switch req.Type {
	case types.OperationPlace:
		result, err = s.inventory.PlaceMaterial(ctx, req, session.ShelfID, session.OperatorID)
	case types.OperationRemove:
		result, err = s.inventory.RemoveMaterial(ctx, req, session.ShelfID, session.OperatorID)
	case types.OperationMove:
		result, err = s.inventory.MoveMaterial(ctx, req, session.ShelfID, session.OperatorID)
	}

	if err != nil {
		if errors.Is(err, interfaces.ErrUpstreamUnavailable) {
			s.upstreamFailures.Add(1)
		}
		s.operationsRejected.Add(1)
		log.Printf("Operation request failed: conn=%s type=%s shelf=%s: %v", conn.ID(), req.Type, session.ShelfID, err)
		s.writeOperationResponse(conn, types.OperationResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	s.operationsAccepted.Add(1)
	s.writeOperationResponse(conn, types.OperationResponse{
		Success: true,
		Data:    result,
	})
}

// HandleDisconnect deletes the connection's session and room memberships.
// No-op when the connection never joined anything.
func (s *Service) HandleDisconnect(ctx context.Context, connectionID string) {
	s.directory.Remove(connectionID)
	if err := s.sessions.DeleteSession(ctx, connectionID); err != nil {
		log.Printf("Failed to delete session: conn=%s: %v", connectionID, err)
	}
	log.Printf("Client disconnected: conn=%s", connectionID)
}

// GetShelfStatus performs a cache-first read: cached entry when present and
// unexpired, otherwise a read-through to the inventory service. Upstream
// failure degrades to an unavailable result instead of failing the caller;
// callers must treat that as "unknown", not as a real shelf state.
func (s *Service) GetShelfStatus(ctx context.Context, shelfID string) types.StatusResult {
	cached, err := s.cache.GetShelfStatus(ctx, shelfID)
	if err == nil {
		return types.StatusResult{ShelfID: shelfID, Available: true, Status: cached}
	}
	if !errors.Is(err, interfaces.ErrCacheMiss) {
		log.Printf("Shelf status cache read failed: shelf=%s: %v", shelfID, err)
	}

	return s.RefreshShelfStatus(ctx, shelfID)
}

// RefreshShelfStatus fetches the authoritative snapshot and overwrites the
// cache entry unconditionally. Entries are always full-snapshot writes,
// never incremental patches, which keeps the slot-count arithmetic exact.
func (s *Service) RefreshShelfStatus(ctx context.Context, shelfID string) types.StatusResult {
	status, err := s.inventory.GetShelfStatus(ctx, shelfID)
	if err != nil {
		s.upstreamFailures.Add(1)
		log.Printf("Failed to fetch shelf status: shelf=%s: %v", shelfID, err)
		return types.StatusResult{ShelfID: shelfID, Available: false}
	}

	if err := s.cache.PutShelfStatus(ctx, status); err != nil {
		// Stale cache self-heals via TTL; serve the fresh snapshot anyway.
		log.Printf("Failed to cache shelf status: shelf=%s: %v", shelfID, err)
	}
	return types.StatusResult{ShelfID: shelfID, Available: true, Status: status}
}

// BroadcastInventoryUpdate emits a material event to its shelf room (detail)
// and the admin dashboard (summary), bumps the day's stats counter, and
// force-refreshes the shelf cache.
func (s *Service) BroadcastInventoryUpdate(ctx context.Context, event *types.DomainEvent) {
	s.eventsBroadcast.Add(1)

	detail := types.InventoryUpdatePayload{
		Type: event.EventType,
		Data: types.InventoryChange{
			ShelfID:    event.ShelfID,
			SlotID:     event.SlotID,
			MaterialID: event.MaterialID,
			OperatorID: event.OperatorID,
			Timestamp:  eventTime(event),
		},
	}
	s.emitToRoom(rooms.ShelfRoom(event.ShelfID), types.ServerInventoryUpdate, detail)

	summary := types.GlobalUpdatePayload{Type: "inventory_change", Data: event}
	s.emitToRoom(rooms.AdminRoom, types.ServerGlobalUpdate, summary)

	if err := s.stats.RecordEvent(ctx, event.ShelfID, event.EventType, eventTime(event)); err != nil {
		log.Printf("Failed to record stats: shelf=%s type=%s: %v", event.ShelfID, event.EventType, err)
	}

	s.RefreshShelfStatus(ctx, event.ShelfID)

	log.Printf("Broadcasted inventory update: shelf=%s type=%s", event.ShelfID, event.EventType)
}

// BroadcastShelfStatusChange emits a status flip to the shelf room and the
// admin dashboard. No cache interaction.
func (s *Service) BroadcastShelfStatusChange(ctx context.Context, event *types.DomainEvent) {
	s.eventsBroadcast.Add(1)

	payload := types.ShelfStatusChangedPayload{
		ShelfID:   event.ShelfID,
		OldStatus: event.OldStatus,
		NewStatus: event.NewStatus,
		Timestamp: eventTime(event),
	}
	s.emitToRoom(rooms.ShelfRoom(event.ShelfID), types.ServerShelfStatusChanged, payload)
	s.emitToRoom(rooms.AdminRoom, types.ServerShelfStatusUpdate, event)

	log.Printf("Broadcasted shelf status change: shelf=%s %s->%s", event.ShelfID, event.OldStatus, event.NewStatus)
}

// BroadcastHealthAlert emits a shelf health alert to the shelf room and the
// admin dashboard.
func (s *Service) BroadcastHealthAlert(ctx context.Context, event *types.DomainEvent) {
	s.eventsBroadcast.Add(1)

	payload := types.HealthAlertPayload{
		Type:        "shelf_health",
		ShelfID:     event.ShelfID,
		HealthScore: event.HealthScore,
		Message:     event.Message,
		Severity:    event.Severity,
		Timestamp:   eventTime(event),
	}
	s.emitToRoom(rooms.ShelfRoom(event.ShelfID), types.ServerHealthAlert, payload)
	s.emitToRoom(rooms.AdminRoom, types.ServerHealthAlert, event)

	log.Printf("Broadcasted health alert: shelf=%s severity=%s", event.ShelfID, event.Severity)
}

// BroadcastSystemAlert always reaches the admin dashboard; critical alerts
// additionally reach every connected client regardless of room. That is the
// one deliberate break from room scoping, reserved for outage-class events.
func (s *Service) BroadcastSystemAlert(ctx context.Context, event *types.DomainEvent) {
	s.eventsBroadcast.Add(1)

	payload := types.SystemAlertPayload{
		Type:      event.AlertType,
		Severity:  event.Severity,
		Message:   event.Message,
		Metadata:  event.Metadata,
		Timestamp: eventTime(event),
	}
	s.emitToRoom(rooms.AdminRoom, types.ServerSystemAlert, payload)

	if event.Severity == types.SeverityCritical {
		critical := types.CriticalAlertPayload{
			Message:   event.Message,
			Timestamp: eventTime(event),
		}
		if failed := s.directory.BroadcastAll(types.ServerCriticalSystemAlert, critical); failed > 0 {
			s.broadcastFailures.Add(int64(failed))
			log.Printf("Critical alert delivery incomplete: failed=%d", failed)
		}
	}

	log.Printf("Broadcasted system alert: type=%s severity=%s", event.AlertType, event.Severity)
}

// BroadcastAuditLog emits an audit record to the admin dashboard only.
func (s *Service) BroadcastAuditLog(ctx context.Context, event *types.DomainEvent) {
	s.eventsBroadcast.Add(1)
	s.emitToRoom(rooms.AdminRoom, types.ServerAuditLog, event)
}

// BroadcastToShelf emits a message to a single shelf room.
func (s *Service) BroadcastToShelf(ctx context.Context, shelfID string, message types.ShelfMessagePayload) {
	s.eventsBroadcast.Add(1)
	s.emitToRoom(rooms.ShelfRoom(shelfID), types.ServerShelfMessage, message)
}

// PushShelfStatus force-refreshes a shelf's snapshot and pushes it to the
// shelf room. Used after physical placement/removal outcomes so workers see
// the reconciled state without re-joining.
func (s *Service) PushShelfStatus(ctx context.Context, shelfID string) {
	result := s.RefreshShelfStatus(ctx, shelfID)
	s.emitToRoom(rooms.ShelfRoom(shelfID), types.ServerShelfStatus, result.Payload())
}

// Stats reports orchestrator and room counters for the operator endpoint.
func (s *Service) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"events_broadcast":    s.eventsBroadcast.Load(),
		"broadcast_failures":  s.broadcastFailures.Load(),
		"upstream_failures":   s.upstreamFailures.Load(),
		"sessions_created":    s.sessionsCreated.Load(),
		"operations_accepted": s.operationsAccepted.Load(),
		"operations_rejected": s.operationsRejected.Load(),
	}
	for k, v := range s.directory.Stats() {
		stats[k] = v
	}
	return stats
}

// emitToRoom is the shared fire-and-forget emit: failures are counted and
// logged, never returned.
func (s *Service) emitToRoom(room, label string, payload interface{}) {
	if failed := s.directory.BroadcastToRoom(room, label, payload); failed > 0 {
		s.broadcastFailures.Add(int64(failed))
		log.Printf("Broadcast delivery incomplete: room=%s label=%s failed=%d", room, label, failed)
	}
}

func (s *Service) writeError(conn interfaces.Connection, message string) {
	if err := conn.WriteJSON(types.Push(types.ServerError, types.ErrorPayload{Message: message})); err != nil {
		log.Printf("Failed to send error message: conn=%s: %v", conn.ID(), err)
	}
}

func (s *Service) writeOperationResponse(conn interfaces.Connection, resp types.OperationResponse) {
	if err := conn.WriteJSON(types.Push(types.ServerOperationResponse, resp)); err != nil {
		log.Printf("Failed to send operation response: conn=%s: %v", conn.ID(), err)
	}
}

func eventTime(event *types.DomainEvent) time.Time {
	if event.Timestamp.IsZero() {
		return time.Now()
	}
	return event.Timestamp
}
