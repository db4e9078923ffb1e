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
	"github.com/openhomelab/smartserver/internal/storage"
)

type fakeTarget struct {
	mu       sync.Mutex
	state    storage.AssociationState
	stateErr error
	resetErr error
	resets   int
}

func (f *fakeTarget) AssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeTarget) ResetAssoc(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return false, f.resetErr
	}
	f.resets++
	f.state = storage.StateUnassociated
	return true, nil
}

func newSupervisor(sink *fakeSink) (*assoc.Supervisor, *fakeScheduler) {
	sched := &fakeScheduler{}
	return assoc.NewSupervisor(time.Minute, sched, sink, zap.NewNop()), sched
}

func TestWatch_ResetsStalePending(t *testing.T) {
	sink := &fakeSink{}
	supervisor, sched := newSupervisor(sink)
	target := &fakeTarget{state: storage.StatePending}
	id := uuid.New()

	supervisor.Watch(assoc.EntityDevice, id, target)
	sched.Fire()

	require.Equal(t, 1, target.resets)
	require.Equal(t, storage.StateUnassociated, target.state)

	last, ok := sink.last()
	require.True(t, ok)
	require.Equal(t, id, last.id)
	require.Equal(t, storage.StateUnassociated, last.state)
}

func TestWatch_AssociatedIsLeftAlone(t *testing.T) {
	sink := &fakeSink{}
	supervisor, sched := newSupervisor(sink)
	target := &fakeTarget{state: storage.StateAssociated}

	supervisor.Watch(assoc.EntityHost, uuid.New(), target)
	sched.Fire()

	require.Equal(t, 0, target.resets)
	_, ok := sink.last()
	require.False(t, ok)
}

func TestWatch_StateReadFailureIsNotRetried(t *testing.T) {
	sink := &fakeSink{}
	supervisor, sched := newSupervisor(sink)
	target := &fakeTarget{stateErr: errors.New("connection lost")}

	supervisor.Watch(assoc.EntityDevice, uuid.New(), target)
	sched.Fire()

	require.Equal(t, 0, target.resets)
	require.Equal(t, 0, sched.PendingCount())
}

func TestWatch_ResetFailureEmitsNoEvent(t *testing.T) {
	sink := &fakeSink{}
	supervisor, sched := newSupervisor(sink)
	target := &fakeTarget{state: storage.StatePending, resetErr: errors.New("write failed")}

	supervisor.Watch(assoc.EntityDevice, uuid.New(), target)
	sched.Fire()

	_, ok := sink.last()
	require.False(t, ok)
}
