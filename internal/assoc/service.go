package assoc

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
)

// DeviceStore is the device persistence the state machine runs on.
// Every transition is a single conditional update; the store must make
// the state predicate atomic per row. *storage.PostgresClient satisfies it.
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID uuid.UUID) (*storage.Device, error)
	DeviceAssocState(ctx context.Context, deviceID uuid.UUID) (storage.AssociationState, error)
	BeginDeviceAssoc(ctx context.Context, deviceID, ownerID uuid.UUID) (bool, error)
	ConfirmDeviceAssoc(ctx context.Context, deviceID, hostID uuid.UUID) (bool, error)
	DeviceHouseAssoc(ctx context.Context, deviceID, houseID uuid.UUID) (bool, error)
	ResetDeviceAssoc(ctx context.Context, deviceID uuid.UUID) (bool, error)
	ListDevicesByHost(ctx context.Context, hostID uuid.UUID) ([]*storage.Device, error)
}

type HostStore interface {
	HostAssocState(ctx context.Context, hostID uuid.UUID) (storage.AssociationState, error)
	BeginHostAssoc(ctx context.Context, hostID, ownerID uuid.UUID) (bool, error)
	ConfirmHostAssoc(ctx context.Context, hostID uuid.UUID) (bool, error)
	HostHouseAssoc(ctx context.Context, hostID, houseID uuid.UUID) (bool, error)
	ResetHostAssoc(ctx context.Context, hostID uuid.UUID) (bool, error)
}

// EventSink receives association state-change notifications.
type EventSink interface {
	AssociationChanged(entity string, id uuid.UUID, state storage.AssociationState)
}

const (
	EntityDevice = "device"
	EntityHost   = "host"
)

// Service drives the device/host association handshake. It holds no state
// of its own: every decision is re-derived from the persisted row, and
// concurrent writers are serialized by the store's conditional updates.
type Service struct {
	devices    DeviceStore
	hosts      HostStore
	supervisor *Supervisor
	events     EventSink
	logger     *zap.Logger
}

func NewService(devices DeviceStore, hosts HostStore, supervisor *Supervisor, events EventSink, logger *zap.Logger) *Service {
	return &Service{
		devices:    devices,
		hosts:      hosts,
		supervisor: supervisor,
		events:     events,
		logger:     logger,
	}
}

// Adapters giving the supervisor a uniform view of both stores.

type deviceTarget struct{ store DeviceStore }

func (t deviceTarget) AssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error) {
	return t.store.DeviceAssocState(ctx, id)
}

func (t deviceTarget) ResetAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.store.ResetDeviceAssoc(ctx, id)
}

type hostTarget struct{ store HostStore }

func (t hostTarget) AssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error) {
	return t.store.HostAssocState(ctx, id)
}

func (t hostTarget) ResetAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.store.ResetHostAssoc(ctx, id)
}

func (s *Service) notify(entity string, id uuid.UUID, state storage.AssociationState) {
	if s.events != nil {
		s.events.AssociationChanged(entity, id, state)
	}
}

// BeginDeviceAssoc opens the pending window for an unassociated device and
// records the requesting user as owner. Losing a begin race is reported as
// ErrNotFound, never silently merged.
func (s *Service) BeginDeviceAssoc(ctx context.Context, deviceID uuid.UUID, owner auth.UserPrincipal) error {
	state, err := s.devices.DeviceAssocState(ctx, deviceID)
	if err != nil {
		return ErrNotFound
	}
	if state != storage.StateUnassociated {
		return ErrWrongState
	}

	ok, err := s.devices.BeginDeviceAssoc(ctx, deviceID, owner.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Raced: someone else moved the device first, or it was disabled
		// between the read and the write.
		return ErrNotFound
	}

	s.supervisor.Watch(EntityDevice, deviceID, deviceTarget{s.devices})
	s.notify(EntityDevice, deviceID, storage.StatePending)
	return nil
}

// ConfirmDeviceAssoc completes the handshake, binding the device to the
// confirming host. Only valid while the device is PENDING.
func (s *Service) ConfirmDeviceAssoc(ctx context.Context, deviceID uuid.UUID, host auth.HostPrincipal) error {
	state, err := s.devices.DeviceAssocState(ctx, deviceID)
	if err != nil {
		return ErrNotFound
	}
	if state != storage.StatePending {
		return ErrWrongState
	}

	ok, err := s.devices.ConfirmDeviceAssoc(ctx, deviceID, host.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.notify(EntityDevice, deviceID, storage.StateAssociated)
	return nil
}

// DeviceHouseAssoc reassigns the device's house. Independent of the
// association state machine; allowed while the device is enabled.
func (s *Service) DeviceHouseAssoc(ctx context.Context, deviceID, houseID uuid.UUID) error {
	ok, err := s.devices.DeviceHouseAssoc(ctx, deviceID, houseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ResetDeviceAssoc returns an associated device to UNASSOCIATED, clearing
// owner, house and host. The principal must be the device's owner (user)
// or its bound host.
func (s *Service) ResetDeviceAssoc(ctx context.Context, p auth.Principal, deviceID uuid.UUID) error {
	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return ErrNotFound
	}

	if err := canResetDevice(p, device); err != nil {
		return err
	}

	if device.AssocState != storage.StateAssociated {
		return ErrWrongState
	}

	ok, err := s.devices.ResetDeviceAssoc(ctx, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.notify(EntityDevice, deviceID, storage.StateUnassociated)
	return nil
}

// BeginHostAssoc opens the pending window for an unassociated host.
func (s *Service) BeginHostAssoc(ctx context.Context, hostID uuid.UUID, owner auth.UserPrincipal) error {
	state, err := s.hosts.HostAssocState(ctx, hostID)
	if err != nil {
		return ErrNotFound
	}
	if state != storage.StateUnassociated {
		return ErrWrongState
	}

	ok, err := s.hosts.BeginHostAssoc(ctx, hostID, owner.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.supervisor.Watch(EntityHost, hostID, hostTarget{s.hosts})
	s.notify(EntityHost, hostID, storage.StatePending)
	return nil
}

// ConfirmHostAssoc is strictly self-confirmation: the host named by the
// API key confirms its own pending association.
func (s *Service) ConfirmHostAssoc(ctx context.Context, host auth.HostPrincipal) error {
	state, err := s.hosts.HostAssocState(ctx, host.ID)
	if err != nil {
		return ErrNotFound
	}
	if state != storage.StatePending {
		return ErrWrongState
	}

	ok, err := s.hosts.ConfirmHostAssoc(ctx, host.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.notify(EntityHost, host.ID, storage.StateAssociated)
	return nil
}

func (s *Service) HostHouseAssoc(ctx context.Context, hostID, houseID uuid.UUID) error {
	ok, err := s.hosts.HostHouseAssoc(ctx, hostID, houseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ResetHostAssoc resets a host and cascades over every device bound to it.
// There is no transaction across the two tables: a partial cascade leaves
// devices pointing at an already-reset host and is surfaced as
// ErrCascadeFailed, with the failed device ids logged for reconciliation.
func (s *Service) ResetHostAssoc(ctx context.Context, hostID uuid.UUID) error {
	devices, err := s.devices.ListDevicesByHost(ctx, hostID)
	if err != nil {
		return err
	}

	var failed []string
	for _, device := range devices {
		ok, err := s.devices.ResetDeviceAssoc(ctx, device.ID)
		if err != nil || !ok {
			failed = append(failed, device.ID.String())
			continue
		}
		s.notify(EntityDevice, device.ID, storage.StateUnassociated)
	}

	hostOK, err := s.hosts.ResetHostAssoc(ctx, hostID)
	if err != nil {
		return err
	}
	if hostOK {
		s.notify(EntityHost, hostID, storage.StateUnassociated)
	}

	if !hostOK || len(failed) > 0 {
		s.logger.Error("host reset cascade incomplete",
			zap.String("host_id", hostID.String()),
			zap.Bool("host_reset", hostOK),
			zap.Strings("failed_device_ids", failed))
		return ErrCascadeFailed
	}
	return nil
}
