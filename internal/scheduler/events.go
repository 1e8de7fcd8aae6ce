package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
)

// EventRouter направляет доменные события в планировщики.
//
// Каждая реплика получает все события (fanout); не-лидер
// подтверждает их без действий, поскольку лидер того же домена
// получил копию.
type EventRouter struct {
	appointments *AppointmentScheduler
	members      *MemberScheduler
	logger       *slog.Logger
}

// NewEventRouter создаёт EventRouter.
func NewEventRouter(appointments *AppointmentScheduler, members *MemberScheduler, logger *slog.Logger) *EventRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRouter{
		appointments: appointments,
		members:      members,
		logger:       logger,
	}
}

// Handle — mq.Handler для очереди событий реплики.
func (r *EventRouter) Handle(ctx context.Context, d *mq.Delivery) error {
	err := r.route(ctx, &d.Message)
	if errors.Is(err, ErrNotLeader) {
		r.logger.Debug("event ignored by follower", "type", d.Message.Type, "message_id", d.Message.ID)
		return nil
	}
	return err
}

func (r *EventRouter) route(ctx context.Context, msg *mq.Message) error {
	switch msg.Type {
	case mq.TypeAppointmentScheduled:
		a, err := mq.ParsePayload[domain.Appointment](msg)
		if err != nil {
			return mq.Reject(err)
		}
		if a.Status != "" && a.Status != domain.AppointmentStatusScheduled {
			r.appointments.UnregisterAppointmentAlert(a.ID)
			return nil
		}
		_, err = r.appointments.RegisterAppointmentAlert(ctx, alertFor(a))
		return err

	case mq.TypeAppointmentDeleted:
		ref, err := mq.ParsePayload[domain.EntityRef](msg)
		if err != nil {
			return mq.Reject(err)
		}
		r.appointments.UnregisterAppointmentAlert(ref.ID)
		return nil

	case mq.TypeFutureNotify:
		n, err := mq.ParsePayload[domain.FutureNotify](msg)
		if err != nil {
			return mq.Reject(err)
		}
		_, err = r.appointments.RegisterCustomFutureNotify(ctx, n)
		return err

	case mq.TypeFutureNotifyDeleted:
		ref, err := mq.ParsePayload[domain.EntityRef](msg)
		if err != nil {
			return mq.Reject(err)
		}
		r.appointments.UnregisterCustomFutureNotify(ref.ID)
		return nil

	case mq.TypeMemberRegistered:
		m, err := mq.ParsePayload[domain.Member](msg)
		if err != nil {
			return mq.Reject(err)
		}
		_, err = r.members.RegisterNewMemberNudge(ctx, m)
		return err

	case mq.TypeMemberLoggedIn:
		ref, err := mq.ParsePayload[domain.EntityRef](msg)
		if err != nil {
			return mq.Reject(err)
		}
		r.members.UnregisterNewMemberNudge(ref.ID)
		return nil

	default:
		return mq.Reject(fmt.Errorf("%w: %s", ErrUnknownEvent, msg.Type))
	}
}
