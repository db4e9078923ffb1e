package storage

import (
	"time"

	"github.com/google/uuid"
)

// AssociationState is the three-state handshake state shared by devices
// and hosts. Legal transitions: UNASSOCIATED -> PENDING -> ASSOCIATED,
// and PENDING|ASSOCIATED -> UNASSOCIATED (reset).
type AssociationState string

const (
	StateUnassociated AssociationState = "UNASSOCIATED"
	StatePending      AssociationState = "PENDING"
	StateAssociated   AssociationState = "ASSOCIATED"
)

type DeviceType string

const (
	DeviceTypeTHSensor    DeviceType = "TH_SENSOR"
	DeviceTypePlantSensor DeviceType = "PLANT_SENSOR"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Mail         string    `json:"mail"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	IsAdmin      bool      `json:"is_admin"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

type House struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Host struct {
	ID         uuid.UUID        `json:"id"`
	APIKeyHash string           `json:"-"` // Never expose
	OwnerID    *uuid.UUID       `json:"owner_id"`
	HouseID    *uuid.UUID       `json:"house_id"`
	AssocState AssociationState `json:"assoc_state"`
	Enabled    bool             `json:"enabled"`
	CreatedAt  time.Time        `json:"created_at"`
}

type Device struct {
	ID              uuid.UUID        `json:"id"`
	Type            DeviceType       `json:"type"`
	OwnerID         *uuid.UUID       `json:"owner_id"`
	HouseID         *uuid.UUID       `json:"house_id"`
	HostID          *uuid.UUID       `json:"host_id"`
	UpdateFrequency int              `json:"update_frequency"`
	AssocState      AssociationState `json:"assoc_state"`
	Enabled         bool             `json:"enabled"`
	CreatedAt       time.Time        `json:"created_at"`
}

// THReading is one thermo-hygrometer sample. The timestamp is always
// server-assigned at insert time.
type THReading struct {
	ID                uuid.UUID `json:"id"`
	DeviceID          uuid.UUID `json:"device_id"`
	Timestamp         time.Time `json:"timestamp"`
	BatteryPercentage int       `json:"battery_percentage"`
	Temperature       float32   `json:"temperature"`
	Humidity          float32   `json:"humidity"`
	HeatIndex         float32   `json:"heat_index"`
}
