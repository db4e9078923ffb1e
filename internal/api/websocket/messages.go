package websocket

import (
	"time"

	"github.com/google/uuid"

	"github.com/openhomelab/smartserver/internal/storage"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeAssocState MessageType = "assoc_state"
	MessageTypeTelemetry  MessageType = "telemetry"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AssocStateData announces an association state change for a device or host
type AssocStateData struct {
	Entity string                   `json:"entity"`
	ID     uuid.UUID                `json:"id"`
	State  storage.AssociationState `json:"assoc_state"`
}

func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewAssocStateMessage(entity string, id uuid.UUID, state storage.AssociationState) Message {
	return NewMessage(MessageTypeAssocState, AssocStateData{
		Entity: entity,
		ID:     id,
		State:  state,
	})
}

func NewTelemetryMessage(reading *storage.THReading) Message {
	return NewMessage(MessageTypeTelemetry, reading)
}
