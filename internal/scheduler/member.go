package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Courier/internal/content"
	"github.com/shaiso/Courier/internal/delivery"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

const domainMember = "member"

// MemberConfig — конфигурация MemberScheduler.
type MemberConfig struct {
	Base   BaseConfig
	Window Window

	// NudgeAfter — через сколько после регистрации напомнить
	// не вошедшему member'у. Default: 24h
	NudgeAfter time.Duration

	Members   MemberSource
	Notifier  Notifier
	Links     LinkResolver
	Shortener Shortener
	Renderer  Renderer
}

// MemberScheduler напоминает новым member'ам, которые так и не вошли в приложение.
type MemberScheduler struct {
	*Base

	window     Window
	nudgeAfter time.Duration
	members    MemberSource
	notifier   Notifier
	links      LinkResolver
	shortener  Shortener
	renderer   Renderer
}

// NewMemberScheduler создаёт MemberScheduler.
func NewMemberScheduler(cfg MemberConfig) *MemberScheduler {
	cfg.Base.LeaderType = domain.LeaderTypeMember
	if cfg.Window == (Window{}) {
		cfg.Window = DefaultWindow
	}
	if cfg.NudgeAfter <= 0 {
		cfg.NudgeAfter = 24 * time.Hour
	}

	s := &MemberScheduler{
		Base:       NewBase(cfg.Base),
		window:     cfg.Window,
		nudgeAfter: cfg.NudgeAfter,
		members:    cfg.Members,
		notifier:   cfg.Notifier,
		links:      cfg.Links,
		shortener:  cfg.Shortener,
		renderer:   cfg.Renderer,
	}
	s.rehydrator = s
	s.sweeper = s
	return s
}

// nudgeAt возвращает момент напоминания для member'а.
func (s *MemberScheduler) nudgeAt(m domain.Member) time.Time {
	return m.CreatedAt.Add(s.nudgeAfter)
}

// InitCallbacks регистрирует напоминания всем member'ам, чей момент
// напоминания попадает в [now, now+MaxGap].
func (s *MemberScheduler) InitCallbacks(ctx context.Context) error {
	now := s.now()
	n, err := s.registerBetween(ctx, now, now.Add(s.window.MaxGap))
	if err != nil {
		return err
	}

	s.logger.Debug("member callbacks initialized", "members", n)
	return nil
}

// Sweep регистрирует напоминания, момент которых вошёл в окно после
// since: (since+MaxGap, now+MaxGap].
func (s *MemberScheduler) Sweep(ctx context.Context, since, now time.Time) error {
	from, to := now, now.Add(s.window.MaxGap)
	if prevTo := since.Add(s.window.MaxGap); prevTo.After(from) {
		from = prevTo
	}
	if !to.After(from) {
		return nil
	}

	n, err := s.registerBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("member window swept", "members", n)
	}
	return nil
}

// registerBetween регистрирует напоминания с моментом в [from, to].
func (s *MemberScheduler) registerBetween(ctx context.Context, from, to time.Time) (int, error) {
	members, err := s.members.ListNudgeCandidates(ctx, from.Add(-s.nudgeAfter), to.Add(-s.nudgeAfter))
	if err != nil {
		return 0, fmt.Errorf("list nudge candidates: %w", err)
	}
	for _, m := range members {
		if _, err := s.RegisterNewMemberNudge(ctx, m); err != nil {
			return 0, err
		}
	}
	return len(members), nil
}

// RegisterNewMemberNudge ставит напоминание на CreatedAt+NudgeAfter.
//
// Member, который уже вошёл или получил напоминание, и момент вне
// [now, now+MaxGap] пропускаются (false, nil).
func (s *MemberScheduler) RegisterNewMemberNudge(_ context.Context, m domain.Member) (bool, error) {
	now := s.now()
	at := s.nudgeAt(m)

	if !m.NeedsNudge() || at.Before(now) || at.After(now.Add(s.window.MaxGap)) {
		s.DeleteTimeout(m.ID)
		return false, nil
	}

	memberID := m.ID
	err := s.schedule(delivery.Job{
		Key:    memberID,
		At:     at,
		Policy: delivery.NoRetry,
		Attempt: func(ctx context.Context, _ int) error {
			return s.fireNudge(ctx, memberID)
		},
		OnDone: s.firedHook(domainMember, memberID),
	})
	if err != nil {
		return false, err
	}
	s.reportTimers()
	return true, nil
}

// UnregisterNewMemberNudge отменяет напоминание (например, member вошёл).
func (s *MemberScheduler) UnregisterNewMemberNudge(id string) bool {
	return s.DeleteTimeout(id)
}

func (s *MemberScheduler) fireNudge(ctx context.Context, memberID string) error {
	// Перечитываем member'а: он мог войти после регистрации таймера
	m, err := s.members.GetByID(ctx, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Info("member gone, nudge skipped", "member_id", memberID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}
	if !m.NeedsNudge() {
		s.logger.Debug("member no longer needs nudge", "member_id", memberID)
		return nil
	}

	link, err := s.links.CommunicationLink(ctx, m.ID, m.UserID)
	if err != nil {
		return fmt.Errorf("communication link: %w", err)
	}
	short, err := s.shortener.Shorten(ctx, link)
	if err != nil {
		return fmt.Errorf("shorten link: %w", err)
	}
	text, err := s.renderer.Render(content.NewMemberNudge, content.NudgeData{
		FirstName: m.FirstName,
		Link:      short,
	})
	if err != nil {
		return err
	}

	err = s.notifier.Notify(ctx, domain.NotifyEvent{
		MemberID: m.ID,
		UserID:   m.UserID,
		Type:     domain.NotificationTypeText,
		Metadata: domain.NotifyMetadata{Content: text},
	})
	if err != nil {
		return err
	}
	if err := s.members.MarkNudged(ctx, m.ID, s.now()); err != nil && !errors.Is(err, repo.ErrInvalidState) {
		return fmt.Errorf("mark nudged: %w", err)
	}
	return nil
}
