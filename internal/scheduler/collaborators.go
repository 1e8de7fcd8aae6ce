package scheduler

import (
	"context"
	"time"

	"github.com/shaiso/Courier/internal/domain"
)

// AppointmentSource — источник назначенных встреч.
type AppointmentSource interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
}

// FutureNotifySource — источник отложенных уведомлений.
type FutureNotifySource interface {
	ListPendingBetween(ctx context.Context, from, to time.Time) ([]domain.FutureNotify, error)
	MarkDone(ctx context.Context, id string) error
}

// MemberSource — источник member'ов для напоминаний о первом входе.
type MemberSource interface {
	ListNudgeCandidates(ctx context.Context, from, to time.Time) ([]domain.Member, error)
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	MarkNudged(ctx context.Context, id string, at time.Time) error
}

// Notifier публикует notify-событие. Контракт payload — domain.NotifyEvent.
type Notifier interface {
	Notify(ctx context.Context, event domain.NotifyEvent) error
}

// LinkResolver строит ссылку на чат member'а с user'ом.
type LinkResolver interface {
	CommunicationLink(ctx context.Context, memberID, userID string) (string, error)
}

// Shortener сокращает ссылки.
type Shortener interface {
	Shorten(ctx context.Context, url string) (string, error)
}

// Renderer рендерит именованный шаблон.
type Renderer interface {
	Render(name string, data any) (string, error)
}
