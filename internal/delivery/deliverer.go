package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Courier/internal/timer"
)

// Job — одна доставка.
type Job struct {
	// Key — ключ таймера. Повторный DeliverAt с тем же ключом заменяет таймер.
	Key string

	// At — момент доставки. Нулевой или прошедший — немедленно.
	At time.Time

	Policy  RetryPolicy
	Attempt Attempt
	Hooks   Hooks

	// OnDone получает итог Run.
	OnDone func(err error)
}

// Config — конфигурация Deliverer.
type Config struct {
	// Timers — реестр для отложенных доставок. Nil — новый реестр.
	Timers *timer.Registry

	Logger *slog.Logger

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Deliverer исполняет Job сейчас или в момент At.
type Deliverer struct {
	timers *timer.Registry
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// New создаёт Deliverer.
func New(cfg Config) *Deliverer {
	if cfg.Timers == nil {
		cfg.Timers = timer.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Deliverer{
		timers: cfg.Timers,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// DeliverAt запускает job в момент job.At.
//
// Будущий момент с непустым Key ставится таймером; иначе job
// исполняется в отдельной горутине. ctx — контекст исполнения
// доставки, а не входящего запроса.
// Возвращает true, если job отложен таймером.
//
// Отложенный job учитывается в Wait с момента постановки и до
// срабатывания или отмены таймера.
func (d *Deliverer) DeliverAt(ctx context.Context, job Job) bool {
	if job.Key != "" && job.At.After(d.now()) {
		d.wg.Add(1)
		d.timers.SetCancelable(job.Key, job.At, func() {
			defer d.wg.Done()
			d.run(ctx, job)
		}, d.wg.Done)
		return true
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, job)
	}()
	return false
}

// Cancel отменяет отложенную доставку. Отсутствующий ключ — no-op.
func (d *Deliverer) Cancel(key string) bool {
	return d.timers.Delete(key)
}

// Timers возвращает реестр отложенных доставок.
func (d *Deliverer) Timers() *timer.Registry {
	return d.timers
}

// Wait ждёт завершения всех начатых доставок, включая ожидающие
// таймеры. Перед Wait отложенные доставки снимают через Timers().Clear().
func (d *Deliverer) Wait() {
	d.wg.Wait()
}

func (d *Deliverer) run(ctx context.Context, job Job) {
	err := Run(ctx, job.Policy, job.Attempt, job.Hooks)
	if job.OnDone != nil {
		job.OnDone(err)
		return
	}
	if err != nil {
		d.logger.Warn("delivery failed", "key", job.Key, "error", err)
	}
}
