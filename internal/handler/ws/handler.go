package ws

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/session"
)

// MessageType constants
const (
	TypePing     = "ping"
	TypePong     = "pong"
	TypeSnapshot = "snapshot"
	TypeSlot     = "slot"
	TypeError    = "error"
)

// Handler handles WebSocket messages from practice clients.
type Handler struct {
	log        zerolog.Logger
	controller *session.Controller
}

// NewHandler creates a new WebSocket handler.
func NewHandler(log zerolog.Logger, controller *session.Controller) *Handler {
	return &Handler{log: log, controller: controller}
}

// Response represents a WebSocket response.
type Response struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Handle processes incoming WebSocket messages. Slot changes are
// pushed to all clients by the hub; the only pull here is a full
// snapshot for late joiners.
func (h *Handler) Handle(clientID string, msgType string, payload json.RawMessage) ([]byte, error) {
	h.log.Debug().
		Str("client_id", clientID).
		Str("type", msgType).
		Msg("Handling WebSocket message")

	switch msgType {
	case TypePing:
		return h.response(TypePong, map[string]string{
			"message": "pong",
		})

	case TypeSnapshot:
		return h.response(TypeSnapshot, map[string]interface{}{
			"meta":  h.controller.Meta(),
			"slots": h.controller.Snapshots(),
		})

	default:
		return h.errorResponse("unknown message type: " + msgType)
	}
}

func (h *Handler) response(msgType string, payload interface{}) ([]byte, error) {
	resp := Response{
		Type:    msgType,
		Payload: payload,
	}
	return json.Marshal(resp)
}

func (h *Handler) errorResponse(message string) ([]byte, error) {
	return h.response(TypeError, map[string]string{
		"error": message,
	})
}
