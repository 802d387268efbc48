package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"waregate/internal/admission"
	"waregate/internal/config"
	"waregate/internal/realtime"
	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is delegated to the deployment's ingress.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler is the connection controller: it runs admission, upgrades the
// socket, and binds the three inbound client message types (join_shelf,
// operation_request, ping) plus transport-level disconnect to the
// orchestrator's entry points.
type Handler struct {
	control *admission.Control
	service *realtime.Service
	cfg     *config.WebSocketConfig
}

// NewHandler builds the connection controller.
func NewHandler(control *admission.Control, service *realtime.Service, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		control: control,
		service: service,
		cfg:     cfg,
	}
}

// HandleWebSocket admits and upgrades one connection attempt. Both admission
// checks run synchronously before the upgrade; failure of either terminates
// the attempt with no server-side retry.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, err := h.control.Authenticate(r)
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.control.Allow(r.Context(), r.RemoteAddr); err != nil {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(socket, uuid.New().String(), principal, h.cfg.BufferSize, h.cfg.WriteTimeout)
	h.service.Register(conn)
	log.Printf("Client connected: conn=%s client=%s role=%s", conn.ID(), principal.ID, principal.Role)

	go h.handleConnection(conn)
}

// handleConnection owns the read side of one connection: heartbeat
// monitoring plus the inbound message loop. Cleanup runs exactly once when
// the loop exits, however it exits.
func (h *Handler) handleConnection(conn *Connection) {
	ctx := context.Background()
	defer func() {
		h.service.HandleDisconnect(ctx, conn.ID())
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: conn=%s: %v", conn.ID(), err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: conn=%s: %v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		h.handleMessage(ctx, conn, data)
	}
}

// handleMessage binds one inbound frame to an orchestrator call. Bad frames
// earn the sender an error message; they never end the connection.
func (h *Handler) handleMessage(ctx context.Context, conn interfaces.Connection, data []byte) {
	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.writeError(conn, "Invalid message frame")
		return
	}

	switch envelope.Type {
	case types.ClientJoinShelf:
		var req types.JoinShelfRequest
		if err := unmarshalData(envelope.Data, &req); err != nil {
			h.writeError(conn, "Invalid join_shelf payload")
			return
		}
		h.service.JoinShelfRoom(ctx, conn, req.ShelfID, req.OperatorID)

	case types.ClientOperationRequest:
		var req types.OperationRequest
		if err := unmarshalData(envelope.Data, &req); err != nil {
			h.writeError(conn, "Invalid operation_request payload")
			return
		}
		h.service.HandleOperationRequest(ctx, conn, &req)

	case types.ClientPing:
		// Application-level liveness with no business meaning.
		if err := conn.WriteJSON(types.Push(types.ServerPong, nil)); err != nil {
			log.Printf("Failed to send pong: conn=%s: %v", conn.ID(), err)
		}

	default:
		h.writeError(conn, "Unknown message type: "+envelope.Type)
	}
}

func (h *Handler) writeError(conn interfaces.Connection, message string) {
	if err := conn.WriteJSON(types.Push(types.ServerError, types.ErrorPayload{Message: message})); err != nil {
		log.Printf("Failed to send error message: conn=%s: %v", conn.ID(), err)
	}
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, v)
}
