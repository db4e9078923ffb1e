package assoc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/storage"
)

// Target is the slice of a store the supervisor acts on: read the live
// association state, and roll the row back.
type Target interface {
	AssocState(ctx context.Context, id uuid.UUID) (storage.AssociationState, error)
	ResetAssoc(ctx context.Context, id uuid.UUID) (bool, error)
}

// Scheduler defers a function. The production implementation wraps
// time.AfterFunc; tests inject a manual one and fire it on demand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

// Supervisor bounds how long a target may stay PENDING. Each successful
// beginAssoc schedules one fire-once check; there is no cancel path. A
// check that fires after the target progressed (or was reset by someone
// else) re-reads live state and becomes a no-op, so stale checks from
// earlier begin cycles are harmless.
type Supervisor struct {
	window time.Duration
	sched  Scheduler
	events EventSink
	logger *zap.Logger
}

func NewSupervisor(window time.Duration, sched Scheduler, events EventSink, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		window: window,
		sched:  sched,
		events: events,
		logger: logger,
	}
}

// Watch schedules the deferred rollback check for one begin cycle.
// Runs off the request path; the triggering request has already returned.
func (s *Supervisor) Watch(entity string, id uuid.UUID, target Target) {
	s.sched.AfterFunc(s.window, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		state, err := target.AssocState(ctx, id)
		if err != nil {
			s.logger.Warn("association watch: state read failed",
				zap.String("entity", entity),
				zap.String("id", id.String()),
				zap.Error(err))
			return
		}

		if state == storage.StateAssociated {
			return
		}

		ok, err := target.ResetAssoc(ctx, id)
		if err != nil {
			// Not retried: the next begin cycle starts from whatever
			// state the row is actually in.
			s.logger.Error("association watch: reset failed",
				zap.String("entity", entity),
				zap.String("id", id.String()),
				zap.Error(err))
			return
		}

		if ok {
			s.logger.Info("association window elapsed, target reset",
				zap.String("entity", entity),
				zap.String("id", id.String()))
			if s.events != nil {
				s.events.AssociationChanged(entity, id, storage.StateUnassociated)
			}
		}
	})
}
