package assoc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/assoc"
	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
)

// fakeScheduler collects deferred funcs and fires them on demand, so
// tests control exactly when the association window elapses.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, f)
}

func (s *fakeScheduler) Fire() {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (s *fakeScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type event struct {
	entity string
	id     uuid.UUID
	state  storage.AssociationState
}

type fakeSink struct {
	mu     sync.Mutex
	events []event
}

func (f *fakeSink) AssociationChanged(entity string, id uuid.UUID, state storage.AssociationState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{entity, id, state})
}

func (f *fakeSink) last() (event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return event{}, false
	}
	return f.events[len(f.events)-1], true
}

// fakeDeviceStore mirrors the conditional-update semantics of the
// postgres store over an in-memory map.
type fakeDeviceStore struct {
	mu          sync.Mutex
	devices     map[uuid.UUID]*storage.Device
	beforeBegin func()
	failReset   map[uuid.UUID]bool
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{
		devices:   make(map[uuid.UUID]*storage.Device),
		failReset: make(map[uuid.UUID]bool),
	}
}

func (f *fakeDeviceStore) add(d *storage.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[d.ID] = d
}

func (f *fakeDeviceStore) get(id uuid.UUID) (*storage.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok || !d.Enabled {
		return nil, false
	}
	return d, true
}

func (f *fakeDeviceStore) GetDevice(ctx context.Context, id uuid.UUID) (*storage.Device, error) {
	d, ok := f.get(id)
	if !ok {
		return nil, errors.New("device not found")
	}
	copy := *d
	return &copy, nil
}

func (f *fakeDeviceStore) DeviceAssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error) {
	d, ok := f.get(id)
	if !ok {
		return "", errors.New("device not found")
	}
	return d.AssocState, nil
}

func (f *fakeDeviceStore) BeginDeviceAssoc(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	if f.beforeBegin != nil {
		f.beforeBegin()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok || !d.Enabled || d.AssocState != storage.StateUnassociated {
		return false, nil
	}
	d.AssocState = storage.StatePending
	d.OwnerID = &ownerID
	return true, nil
}

func (f *fakeDeviceStore) ConfirmDeviceAssoc(ctx context.Context, id, hostID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok || !d.Enabled || d.AssocState != storage.StatePending {
		return false, nil
	}
	d.AssocState = storage.StateAssociated
	d.HostID = &hostID
	return true, nil
}

func (f *fakeDeviceStore) DeviceHouseAssoc(ctx context.Context, id, houseID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok || !d.Enabled {
		return false, nil
	}
	d.HouseID = &houseID
	return true, nil
}

func (f *fakeDeviceStore) ResetDeviceAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReset[id] {
		return false, errors.New("reset failed")
	}
	d, ok := f.devices[id]
	if !ok || !d.Enabled {
		return false, nil
	}
	d.AssocState = storage.StateUnassociated
	d.OwnerID = nil
	d.HouseID = nil
	d.HostID = nil
	return true, nil
}

func (f *fakeDeviceStore) ListDevicesByHost(ctx context.Context, hostID uuid.UUID) ([]*storage.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*storage.Device, 0)
	for _, d := range f.devices {
		if d.Enabled && d.HostID != nil && *d.HostID == hostID {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}

type fakeHostStore struct {
	mu    sync.Mutex
	hosts map[uuid.UUID]*storage.Host
}

func newFakeHostStore() *fakeHostStore {
	return &fakeHostStore{hosts: make(map[uuid.UUID]*storage.Host)}
}

func (f *fakeHostStore) add(h *storage.Host) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[h.ID] = h
}

func (f *fakeHostStore) HostAssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok || !h.Enabled {
		return "", errors.New("host not found")
	}
	return h.AssocState, nil
}

func (f *fakeHostStore) BeginHostAssoc(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok || !h.Enabled || h.AssocState != storage.StateUnassociated {
		return false, nil
	}
	h.AssocState = storage.StatePending
	h.OwnerID = &ownerID
	return true, nil
}

func (f *fakeHostStore) ConfirmHostAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok || !h.Enabled || h.AssocState != storage.StatePending {
		return false, nil
	}
	h.AssocState = storage.StateAssociated
	return true, nil
}

func (f *fakeHostStore) HostHouseAssoc(ctx context.Context, id, houseID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok || !h.Enabled {
		return false, nil
	}
	h.HouseID = &houseID
	return true, nil
}

func (f *fakeHostStore) ResetHostAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok || !h.Enabled {
		return false, nil
	}
	h.AssocState = storage.StateUnassociated
	h.OwnerID = nil
	h.HouseID = nil
	return true, nil
}

func newTestService(t *testing.T) (*assoc.Service, *fakeDeviceStore, *fakeHostStore, *fakeScheduler, *fakeSink) {
	t.Helper()
	devices := newFakeDeviceStore()
	hosts := newFakeHostStore()
	sched := &fakeScheduler{}
	sink := &fakeSink{}
	logger := zap.NewNop()

	supervisor := assoc.NewSupervisor(30*time.Second, sched, sink, logger)
	service := assoc.NewService(devices, hosts, supervisor, sink, logger)
	return service, devices, hosts, sched, sink
}

func unassociatedDevice() *storage.Device {
	return &storage.Device{
		ID:         uuid.New(),
		Type:       storage.DeviceTypeTHSensor,
		AssocState: storage.StateUnassociated,
		Enabled:    true,
	}
}

func unassociatedHost() *storage.Host {
	return &storage.Host{
		ID:         uuid.New(),
		AssocState: storage.StateUnassociated,
		Enabled:    true,
	}
}

func TestBeginDeviceAssoc_OpensPendingWindow(t *testing.T) {
	service, devices, _, sched, sink := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)
	owner := auth.UserPrincipal{ID: uuid.New()}

	err := service.BeginDeviceAssoc(context.Background(), device.ID, owner)
	require.NoError(t, err)

	stored, _ := devices.get(device.ID)
	require.Equal(t, storage.StatePending, stored.AssocState)
	require.NotNil(t, stored.OwnerID)
	require.Equal(t, owner.ID, *stored.OwnerID)

	require.Equal(t, 1, sched.PendingCount())

	last, ok := sink.last()
	require.True(t, ok)
	require.Equal(t, assoc.EntityDevice, last.entity)
	require.Equal(t, storage.StatePending, last.state)
}

func TestBeginDeviceAssoc_RejectsWrongState(t *testing.T) {
	service, devices, _, sched, _ := newTestService(t)
	device := unassociatedDevice()
	device.AssocState = storage.StatePending
	devices.add(device)

	err := service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()})
	require.ErrorIs(t, err, assoc.ErrWrongState)
	require.Equal(t, 0, sched.PendingCount())
}

func TestBeginDeviceAssoc_UnknownDevice(t *testing.T) {
	service, _, _, _, _ := newTestService(t)

	err := service.BeginDeviceAssoc(context.Background(), uuid.New(), auth.UserPrincipal{ID: uuid.New()})
	require.ErrorIs(t, err, assoc.ErrNotFound)
}

func TestBeginDeviceAssoc_DisabledDevice(t *testing.T) {
	service, devices, _, _, _ := newTestService(t)
	device := unassociatedDevice()
	device.Enabled = false
	devices.add(device)

	err := service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()})
	require.ErrorIs(t, err, assoc.ErrNotFound)
}

func TestBeginDeviceAssoc_LosesRace(t *testing.T) {
	service, devices, _, sched, _ := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)
	rival := uuid.New()

	// Another begin sneaks in between the state read and the conditional
	// update, so the update matches zero rows.
	devices.beforeBegin = func() {
		devices.beforeBegin = nil
		_, err := devices.BeginDeviceAssoc(context.Background(), device.ID, rival)
		require.NoError(t, err)
	}

	err := service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()})
	require.ErrorIs(t, err, assoc.ErrNotFound)

	// The winner's owner binding is untouched and no watch was scheduled
	// for the losing request.
	stored, _ := devices.get(device.ID)
	require.Equal(t, rival, *stored.OwnerID)
	require.Equal(t, 0, sched.PendingCount())
}

func TestDeviceAssoc_TimeoutRollsBack(t *testing.T) {
	service, devices, _, sched, sink := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)

	require.NoError(t, service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()}))

	sched.Fire()

	stored, _ := devices.get(device.ID)
	require.Equal(t, storage.StateUnassociated, stored.AssocState)
	require.Nil(t, stored.OwnerID)
	require.Nil(t, stored.HouseID)
	require.Nil(t, stored.HostID)

	last, ok := sink.last()
	require.True(t, ok)
	require.Equal(t, storage.StateUnassociated, last.state)
}

func TestDeviceAssoc_ConfirmBeatsTimeout(t *testing.T) {
	service, devices, _, sched, _ := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)
	host := auth.HostPrincipal{ID: uuid.New()}

	require.NoError(t, service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()}))
	require.NoError(t, service.ConfirmDeviceAssoc(context.Background(), device.ID, host))

	// The stale watch fires after confirmation and must not undo it.
	sched.Fire()

	stored, _ := devices.get(device.ID)
	require.Equal(t, storage.StateAssociated, stored.AssocState)
	require.NotNil(t, stored.HostID)
	require.Equal(t, host.ID, *stored.HostID)
}

func TestConfirmDeviceAssoc_RequiresPending(t *testing.T) {
	service, devices, _, _, _ := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)
	host := auth.HostPrincipal{ID: uuid.New()}

	err := service.ConfirmDeviceAssoc(context.Background(), device.ID, host)
	require.ErrorIs(t, err, assoc.ErrWrongState)

	require.NoError(t, service.BeginDeviceAssoc(context.Background(), device.ID, auth.UserPrincipal{ID: uuid.New()}))
	require.NoError(t, service.ConfirmDeviceAssoc(context.Background(), device.ID, host))

	// Second confirm finds ASSOCIATED, not PENDING.
	err = service.ConfirmDeviceAssoc(context.Background(), device.ID, host)
	require.ErrorIs(t, err, assoc.ErrWrongState)
}

func TestResetDeviceAssoc_OwnershipRules(t *testing.T) {
	owner := uuid.New()
	boundHost := uuid.New()

	associated := func() *storage.Device {
		d := unassociatedDevice()
		d.AssocState = storage.StateAssociated
		o, h := owner, boundHost
		d.OwnerID = &o
		d.HostID = &h
		return d
	}

	cases := []struct {
		name      string
		principal auth.Principal
		wantErr   error
	}{
		{"owner may reset", auth.UserPrincipal{ID: owner}, nil},
		{"foreign user rejected", auth.UserPrincipal{ID: uuid.New()}, assoc.ErrUnauthorized},
		{"bound host may reset", auth.HostPrincipal{ID: boundHost}, nil},
		{"foreign host rejected", auth.HostPrincipal{ID: uuid.New()}, assoc.ErrUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service, devices, _, _, _ := newTestService(t)
			device := associated()
			devices.add(device)

			err := service.ResetDeviceAssoc(context.Background(), tc.principal, device.ID)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				stored, _ := devices.get(device.ID)
				require.Equal(t, storage.StateAssociated, stored.AssocState)
				return
			}

			require.NoError(t, err)
			stored, _ := devices.get(device.ID)
			require.Equal(t, storage.StateUnassociated, stored.AssocState)
			require.Nil(t, stored.OwnerID)
			require.Nil(t, stored.HostID)
		})
	}
}

func TestResetDeviceAssoc_RequiresAssociated(t *testing.T) {
	service, devices, _, _, _ := newTestService(t)
	owner := uuid.New()
	device := unassociatedDevice()
	device.AssocState = storage.StatePending
	device.OwnerID = &owner
	devices.add(device)

	err := service.ResetDeviceAssoc(context.Background(), auth.UserPrincipal{ID: owner}, device.ID)
	require.ErrorIs(t, err, assoc.ErrWrongState)
}

func TestHostAssoc_FullHandshake(t *testing.T) {
	service, _, hosts, sched, _ := newTestService(t)
	host := unassociatedHost()
	hosts.add(host)
	owner := auth.UserPrincipal{ID: uuid.New()}

	require.NoError(t, service.BeginHostAssoc(context.Background(), host.ID, owner))
	state, err := hosts.HostAssocState(context.Background(), host.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StatePending, state)

	require.NoError(t, service.ConfirmHostAssoc(context.Background(), auth.HostPrincipal{ID: host.ID}))

	sched.Fire()

	state, err = hosts.HostAssocState(context.Background(), host.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StateAssociated, state)
}

func TestHostAssoc_TimeoutRollsBack(t *testing.T) {
	service, _, hosts, sched, _ := newTestService(t)
	host := unassociatedHost()
	hosts.add(host)

	require.NoError(t, service.BeginHostAssoc(context.Background(), host.ID, auth.UserPrincipal{ID: uuid.New()}))
	sched.Fire()

	state, err := hosts.HostAssocState(context.Background(), host.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StateUnassociated, state)
}

func TestConfirmHostAssoc_RequiresPending(t *testing.T) {
	service, _, hosts, _, _ := newTestService(t)
	host := unassociatedHost()
	hosts.add(host)

	err := service.ConfirmHostAssoc(context.Background(), auth.HostPrincipal{ID: host.ID})
	require.ErrorIs(t, err, assoc.ErrWrongState)
}

func TestResetHostAssoc_CascadesOverDevices(t *testing.T) {
	service, devices, hosts, _, sink := newTestService(t)
	owner := uuid.New()

	host := unassociatedHost()
	host.AssocState = storage.StateAssociated
	host.OwnerID = &owner
	hosts.add(host)

	var bound []*storage.Device
	for i := 0; i < 3; i++ {
		d := unassociatedDevice()
		d.AssocState = storage.StateAssociated
		o, h := owner, host.ID
		d.OwnerID = &o
		d.HostID = &h
		devices.add(d)
		bound = append(bound, d)
	}

	require.NoError(t, service.ResetHostAssoc(context.Background(), host.ID))

	for _, d := range bound {
		stored, _ := devices.get(d.ID)
		require.Equal(t, storage.StateUnassociated, stored.AssocState)
		require.Nil(t, stored.HostID)
	}

	state, err := hosts.HostAssocState(context.Background(), host.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StateUnassociated, state)

	last, ok := sink.last()
	require.True(t, ok)
	require.Equal(t, assoc.EntityHost, last.entity)
	require.Equal(t, storage.StateUnassociated, last.state)
}

func TestResetHostAssoc_PartialCascadeReported(t *testing.T) {
	service, devices, hosts, _, _ := newTestService(t)

	host := unassociatedHost()
	host.AssocState = storage.StateAssociated
	hosts.add(host)

	good := unassociatedDevice()
	good.AssocState = storage.StateAssociated
	h1 := host.ID
	good.HostID = &h1
	devices.add(good)

	bad := unassociatedDevice()
	bad.AssocState = storage.StateAssociated
	h2 := host.ID
	bad.HostID = &h2
	devices.add(bad)
	devices.failReset[bad.ID] = true

	err := service.ResetHostAssoc(context.Background(), host.ID)
	require.ErrorIs(t, err, assoc.ErrCascadeFailed)

	// The healthy device and the host itself are still reset.
	stored, _ := devices.get(good.ID)
	require.Equal(t, storage.StateUnassociated, stored.AssocState)

	state, stateErr := hosts.HostAssocState(context.Background(), host.ID)
	require.NoError(t, stateErr)
	require.Equal(t, storage.StateUnassociated, state)
}

func TestDeviceHouseAssoc_UnknownDevice(t *testing.T) {
	service, _, _, _, _ := newTestService(t)

	err := service.DeviceHouseAssoc(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, assoc.ErrNotFound)
}

func TestDeviceHouseAssoc_AssignsHouse(t *testing.T) {
	service, devices, _, _, _ := newTestService(t)
	device := unassociatedDevice()
	devices.add(device)
	houseID := uuid.New()

	require.NoError(t, service.DeviceHouseAssoc(context.Background(), device.ID, houseID))

	stored, _ := devices.get(device.ID)
	require.NotNil(t, stored.HouseID)
	require.Equal(t, houseID, *stored.HouseID)
}
