package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shaiso/Courier/internal/delivery"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
	"github.com/shaiso/Courier/internal/timer"
)

// LeaseStore — хранилище аренды лидерства.
type LeaseStore interface {
	Get(ctx context.Context, leaderType domain.LeaderType) (*domain.LeaderLease, error)
	Claim(ctx context.Context, leaderType domain.LeaderType, ownerID string, now time.Time, ttl time.Duration) (bool, error)
	Release(ctx context.Context, leaderType domain.LeaderType, ownerID string) error
}

// Rehydrator восстанавливает таймеры домена из БД.
// Вызывается один раз на каждый переход follower → leader.
type Rehydrator interface {
	InitCallbacks(ctx context.Context) error
}

// Sweeper регистрирует события, вошедшие в окно с прошлого тика.
// Лидер вызывает Sweep на каждом успешном продлении аренды:
// since — момент прошлой регидратации или прохода.
type Sweeper interface {
	Sweep(ctx context.Context, since, now time.Time) error
}

// BaseConfig — конфигурация Base.
type BaseConfig struct {
	LeaderType domain.LeaderType
	Leases     LeaseStore
	Logger     *slog.Logger

	// LeaseTTL — после скольких минут без продления аренду можно забрать.
	// Default: 3m. Отрицательное значение — никогда.
	LeaseTTL time.Duration

	// TickSpec — расписание тика. Default: "@every 1m"
	TickSpec string

	// Identifier — ownerID реплики. Default: случайный UUID.
	Identifier string

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Base — общая часть планировщиков: аренда, тик и реестр таймеров.
//
// Таймеры регистрирует и исполняет только лидер. При потере
// лидерства реестр очищается: таймеры — производный кэш.
type Base struct {
	identifier string
	leaderType domain.LeaderType
	leases     LeaseStore
	logger     *slog.Logger
	leaseTTL   time.Duration
	tickSpec   string
	now        func() time.Time

	timers    *timer.Registry
	deliverer *delivery.Deliverer

	rehydrator Rehydrator
	sweeper    Sweeper

	// mu защищает isLeader вместе с реестром:
	// регистрация таймера и потеря лидерства не пересекаются.
	mu          sync.RWMutex
	isLeader    bool
	lastRenewed time.Time
	lastSwept   time.Time

	tickMu  sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
}

// NewBase создаёт Base.
func NewBase(cfg BaseConfig) *Base {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = 3 * time.Minute
	}
	if cfg.TickSpec == "" {
		cfg.TickSpec = "@every 1m"
	}
	if cfg.Identifier == "" {
		cfg.Identifier = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := telemetry.WithLeaderType(cfg.Logger, string(cfg.LeaderType)).With("owner_id", cfg.Identifier)
	timers := timer.NewRegistry().WithClock(cfg.Now)

	return &Base{
		identifier: cfg.Identifier,
		leaderType: cfg.LeaderType,
		leases:     cfg.Leases,
		logger:     logger,
		leaseTTL:   cfg.LeaseTTL,
		tickSpec:   cfg.TickSpec,
		now:        cfg.Now,
		timers:     timers,
		deliverer: delivery.New(delivery.Config{
			Timers: timers,
			Logger: logger,
			Now:    cfg.Now,
		}),
		baseCtx: context.Background(),
	}
}

// Identifier возвращает ownerID реплики.
func (b *Base) Identifier() string {
	return b.identifier
}

// LeaderType возвращает домен планировщика.
func (b *Base) LeaderType() domain.LeaderType {
	return b.leaderType
}

// IsLeader сообщает, держит ли реплика аренду.
func (b *Base) IsLeader() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isLeader
}

// Timers возвращает реестр таймеров.
func (b *Base) Timers() *timer.Registry {
	return b.timers
}

// DeleteTimeout отменяет таймер id. Отсутствующий id — no-op.
func (b *Base) DeleteTimeout(id string) bool {
	deleted := b.timers.Delete(id)
	b.reportTimers()
	return deleted
}

// RunEveryMinute — один тик выборов лидера.
//
// Follower читает аренду: если она свободна, своя или просрочена,
// захватывает её compare-and-swap'ом и на переходе в лидеры вызывает
// InitCallbacks. Лидер продлевает аренду и вызывает Sweep; если аренду
// забрали, становится follower'ом и очищает таймеры. Ошибка БД проваливает только этот тик.
func (b *Base) RunEveryMinute(ctx context.Context) error {
	b.tickMu.Lock()
	defer b.tickMu.Unlock()

	if b.IsLeader() {
		return b.renew(ctx)
	}
	return b.tryAcquire(ctx)
}

func (b *Base) tryAcquire(ctx context.Context) error {
	now := b.now()

	lease, err := b.leases.Get(ctx, b.leaderType)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("get lease: %w", err)
	}
	if lease != nil && !lease.OwnedBy(b.identifier) && !lease.IsExpired(now, b.leaseTTL) {
		// Лидер жив — остаёмся follower'ом
		return nil
	}

	claimed, err := b.leases.Claim(ctx, b.leaderType, b.identifier, now, b.leaseTTL)
	if err != nil {
		return fmt.Errorf("claim lease: %w", err)
	}
	if !claimed {
		b.logger.Debug("lease claimed by another replica")
		return nil
	}

	b.mu.Lock()
	b.isLeader = true
	b.lastRenewed = now
	b.lastSwept = now
	b.mu.Unlock()
	telemetry.Leader.WithLabelValues(string(b.leaderType)).Set(1)

	if lease != nil && !lease.OwnedBy(b.identifier) {
		b.logger.Info("became leader", "previous_owner", lease.OwnerID)
	} else {
		b.logger.Info("became leader")
	}

	if b.rehydrator == nil {
		return nil
	}
	if err := b.rehydrator.InitCallbacks(ctx); err != nil {
		// Без полной регидратации лидер пропустил бы события:
		// отдаём аренду, следующий тик попробует снова
		b.stepDown(ctx, true)
		return fmt.Errorf("init callbacks: %w", err)
	}
	b.logger.Info("timers rehydrated", "timers", b.timers.Len())
	b.reportTimers()
	return nil
}

func (b *Base) renew(ctx context.Context) error {
	now := b.now()

	claimed, err := b.leases.Claim(ctx, b.leaderType, b.identifier, now, b.leaseTTL)
	if err != nil {
		b.mu.RLock()
		stale := b.leaseTTL > 0 && now.Sub(b.lastRenewed) >= b.leaseTTL
		b.mu.RUnlock()
		if stale {
			// Аренду уже могли забрать: не держим таймеры вслепую
			b.logger.Warn("lease not renewed within ttl, stepping down", "error", err)
			b.stepDown(ctx, false)
		}
		return fmt.Errorf("renew lease: %w", err)
	}
	if !claimed {
		b.logger.Warn("lost leadership")
		b.stepDown(ctx, false)
		return nil
	}

	b.mu.Lock()
	b.lastRenewed = now
	since := b.lastSwept
	b.mu.Unlock()

	if b.sweeper == nil {
		return nil
	}
	// При ошибке lastSwept не двигается: следующий тик пройдёт отрезок заново
	if err := b.sweeper.Sweep(ctx, since, now); err != nil {
		return fmt.Errorf("sweep window: %w", err)
	}
	b.mu.Lock()
	b.lastSwept = now
	b.mu.Unlock()
	b.reportTimers()
	return nil
}

// stepDown снимает лидерство и очищает таймеры.
func (b *Base) stepDown(ctx context.Context, release bool) {
	b.mu.Lock()
	b.isLeader = false
	b.timers.Clear()
	b.mu.Unlock()

	telemetry.Leader.WithLabelValues(string(b.leaderType)).Set(0)
	b.reportTimers()

	if release {
		if err := b.leases.Release(ctx, b.leaderType, b.identifier); err != nil {
			b.logger.Warn("failed to release lease", "error", err)
		}
	}
}

// schedule ставит job, только если реплика — лидер.
func (b *Base) schedule(job delivery.Job) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.isLeader {
		return ErrNotLeader
	}
	b.deliverer.DeliverAt(b.baseCtx, job)
	return nil
}

// firedHook возвращает OnDone, считающий метрики и логирующий ошибку.
// Сработавший таймер не повторяется.
func (b *Base) firedHook(domainName, id string) func(error) {
	return func(err error) {
		defer b.reportTimers()
		if err != nil {
			telemetry.TimersFired.WithLabelValues(domainName, "error").Inc()
			b.logger.Warn("timer callback failed", "domain", domainName, "id", id, "error", err)
			return
		}
		telemetry.TimersFired.WithLabelValues(domainName, "ok").Inc()
		b.logger.Debug("timer fired", "domain", domainName, "id", id)
	}
}

func (b *Base) reportTimers() {
	telemetry.TimersRegistered.WithLabelValues(string(b.leaderType)).Set(float64(b.timers.Len()))
}

// Start запускает тик по расписанию и сразу выполняет первый.
func (b *Base) Start(ctx context.Context) error {
	b.baseCtx = ctx
	b.cron = newCron(b.logger)

	_, err := b.cron.AddFunc(b.tickSpec, func() {
		if err := b.RunEveryMinute(ctx); err != nil {
			b.logger.Error("leader tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule leader tick: %w", err)
	}

	if err := b.RunEveryMinute(ctx); err != nil {
		b.logger.Error("leader tick failed", "error", err)
	}

	b.cron.Start()
	b.logger.Info("scheduler started", "tick", b.tickSpec)
	return nil
}

// Stop останавливает тик, очищает таймеры и отдаёт аренду,
// чтобы другая реплика подхватила домен без ожидания TTL.
func (b *Base) Stop(ctx context.Context) {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}

	b.tickMu.Lock()
	defer b.tickMu.Unlock()

	if b.IsLeader() {
		b.stepDown(ctx, true)
		b.logger.Info("lease released")
	}
	b.timers.Clear()
	b.deliverer.Wait()
	b.logger.Info("scheduler stopped")
}
