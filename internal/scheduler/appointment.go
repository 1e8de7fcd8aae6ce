package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Courier/internal/content"
	"github.com/shaiso/Courier/internal/delivery"
	"github.com/shaiso/Courier/internal/domain"
)

const (
	domainAppointment  = "appointment"
	domainFutureNotify = "future_notify"
)

// AppointmentAlert — встреча, о которой нужно напомнить.
type AppointmentAlert struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	UserID    string    `json:"userId"`
	Start     time.Time `json:"start"`
	FirstName string    `json:"firstName,omitempty"`
}

// alertFor строит напоминание из записи встречи.
func alertFor(a domain.Appointment) AppointmentAlert {
	return AppointmentAlert{
		ID:        a.ID,
		MemberID:  a.MemberID,
		UserID:    a.UserID,
		Start:     a.Start,
		FirstName: a.FirstName,
	}
}

// AppointmentConfig — конфигурация AppointmentScheduler.
type AppointmentConfig struct {
	Base           BaseConfig
	Window         Window
	Appointments   AppointmentSource
	FutureNotifies FutureNotifySource
	Notifier       Notifier
	Links          LinkResolver
	Shortener      Shortener
	Renderer       Renderer
}

// AppointmentScheduler напоминает о встречах и отправляет
// отложенные произвольные уведомления.
type AppointmentScheduler struct {
	*Base

	window         Window
	appointments   AppointmentSource
	futureNotifies FutureNotifySource
	notifier       Notifier
	links          LinkResolver
	shortener      Shortener
	renderer       Renderer
}

// NewAppointmentScheduler создаёт AppointmentScheduler.
func NewAppointmentScheduler(cfg AppointmentConfig) *AppointmentScheduler {
	cfg.Base.LeaderType = domain.LeaderTypeAppointment
	if cfg.Window == (Window{}) {
		cfg.Window = DefaultWindow
	}

	s := &AppointmentScheduler{
		Base:           NewBase(cfg.Base),
		window:         cfg.Window,
		appointments:   cfg.Appointments,
		futureNotifies: cfg.FutureNotifies,
		notifier:       cfg.Notifier,
		links:          cfg.Links,
		shortener:      cfg.Shortener,
		renderer:       cfg.Renderer,
	}
	s.rehydrator = s
	s.sweeper = s
	return s
}

// InitCallbacks регистрирует таймеры для всех встреч и уведомлений в окне.
func (s *AppointmentScheduler) InitCallbacks(ctx context.Context) error {
	from, to := s.window.Bounds(s.now())
	appointments, notifies, err := s.registerBetween(ctx, from, to)
	if err != nil {
		return err
	}

	s.logger.Debug("appointment callbacks initialized",
		"appointments", appointments,
		"future_notifies", notifies,
	)
	return nil
}

// Sweep регистрирует встречи и уведомления, вошедшие в окно после since:
// start в (since+MaxGap, now+MaxGap].
func (s *AppointmentScheduler) Sweep(ctx context.Context, since, now time.Time) error {
	from, to := s.window.Bounds(now)
	if prevTo := since.Add(s.window.MaxGap); prevTo.After(from) {
		from = prevTo
	}
	if !to.After(from) {
		return nil
	}

	appointments, notifies, err := s.registerBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if appointments > 0 || notifies > 0 {
		s.logger.Debug("appointment window swept",
			"appointments", appointments,
			"future_notifies", notifies,
		)
	}
	return nil
}

func (s *AppointmentScheduler) registerBetween(ctx context.Context, from, to time.Time) (int, int, error) {
	appointments, err := s.appointments.ListScheduledBetween(ctx, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("list appointments: %w", err)
	}
	for _, a := range appointments {
		if _, err := s.RegisterAppointmentAlert(ctx, alertFor(a)); err != nil {
			return 0, 0, err
		}
	}

	notifies, err := s.futureNotifies.ListPendingBetween(ctx, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("list future notifies: %w", err)
	}
	for _, n := range notifies {
		if _, err := s.RegisterCustomFutureNotify(ctx, n); err != nil {
			return 0, 0, err
		}
	}
	return len(appointments), len(notifies), nil
}

// RegisterAppointmentAlert ставит напоминание на start−AlertBefore.
//
// Встреча вне окна пропускается (false, nil). Существующий таймер
// для того же ID заменяется, поэтому перенос встречи не плодит таймеры.
func (s *AppointmentScheduler) RegisterAppointmentAlert(_ context.Context, a AppointmentAlert) (bool, error) {
	if !s.window.Contains(a.Start, s.now()) {
		// Вне окна: если встречу перенесли, старый таймер больше не нужен
		s.DeleteTimeout(a.ID)
		s.logger.Debug("appointment outside alert window", "appointment_id", a.ID, "start", a.Start)
		return false, nil
	}

	err := s.schedule(delivery.Job{
		Key:    a.ID,
		At:     a.Start.Add(-s.window.AlertBefore),
		Policy: delivery.NoRetry,
		Attempt: func(ctx context.Context, _ int) error {
			return s.fireAppointmentAlert(ctx, a)
		},
		OnDone: s.firedHook(domainAppointment, a.ID),
	})
	if err != nil {
		return false, err
	}
	s.reportTimers()
	return true, nil
}

// UnregisterAppointmentAlert отменяет напоминание о встрече.
func (s *AppointmentScheduler) UnregisterAppointmentAlert(id string) bool {
	return s.DeleteTimeout(id)
}

func (s *AppointmentScheduler) fireAppointmentAlert(ctx context.Context, a AppointmentAlert) error {
	link, err := s.links.CommunicationLink(ctx, a.MemberID, a.UserID)
	if err != nil {
		return fmt.Errorf("communication link: %w", err)
	}
	short, err := s.shortener.Shorten(ctx, link)
	if err != nil {
		return fmt.Errorf("shorten link: %w", err)
	}
	text, err := s.renderer.Render(content.AppointmentReminder, content.ReminderData{
		FirstName: a.FirstName,
		Start:     a.Start,
		Link:      short,
	})
	if err != nil {
		return err
	}

	return s.notifier.Notify(ctx, domain.NotifyEvent{
		MemberID: a.MemberID,
		UserID:   a.UserID,
		Type:     domain.NotificationTypeText,
		Metadata: domain.NotifyMetadata{Content: text},
	})
}

// RegisterCustomFutureNotify ставит таймер на Metadata.When с той же
// политикой окна, что и напоминания о встречах.
func (s *AppointmentScheduler) RegisterCustomFutureNotify(_ context.Context, n domain.FutureNotify) (bool, error) {
	if !s.window.Contains(n.Metadata.When, s.now()) {
		s.DeleteTimeout(n.ID)
		s.logger.Debug("future notify outside window", "notify_id", n.ID, "when", n.Metadata.When)
		return false, nil
	}

	err := s.schedule(delivery.Job{
		Key:    n.ID,
		At:     n.Metadata.When,
		Policy: delivery.NoRetry,
		Attempt: func(ctx context.Context, _ int) error {
			return s.fireFutureNotify(ctx, n)
		},
		OnDone: s.firedHook(domainFutureNotify, n.ID),
	})
	if err != nil {
		return false, err
	}
	s.reportTimers()
	return true, nil
}

// UnregisterCustomFutureNotify отменяет отложенное уведомление.
func (s *AppointmentScheduler) UnregisterCustomFutureNotify(id string) bool {
	return s.DeleteTimeout(id)
}

func (s *AppointmentScheduler) fireFutureNotify(ctx context.Context, n domain.FutureNotify) error {
	when := n.Metadata.When
	err := s.notifier.Notify(ctx, domain.NotifyEvent{
		MemberID: n.MemberID,
		UserID:   n.UserID,
		Type:     n.Type,
		Metadata: domain.NotifyMetadata{Content: n.Metadata.Content, When: &when},
	})
	if err != nil {
		return err
	}
	if err := s.futureNotifies.MarkDone(ctx, n.ID); err != nil {
		return fmt.Errorf("mark future notify done: %w", err)
	}
	return nil
}
