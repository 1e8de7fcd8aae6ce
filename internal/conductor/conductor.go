package conductor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Courier/internal/delivery"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
)

// Default configuration values.
const (
	defaultGap          = 60 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = time.Second
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	defaultStallTimeout = 5 * time.Minute
	defaultDrainTimeout = 10 * time.Second
)

// DispatchStore — хранилище dispatch (реализует repo.DispatchRepo).
type DispatchStore interface {
	Upsert(ctx context.Context, p domain.DispatchPatch, now time.Time) (*domain.Dispatch, error)
	Get(ctx context.Context, dispatchID string) (*domain.Dispatch, error)
	UpdateInternal(ctx context.Context, dispatchID string, u domain.DispatchUpdate, now time.Time) (*domain.Dispatch, error)
	SetTriggeredID(ctx context.Context, dispatchID, triggeredID string) error
	ListBySender(ctx context.Context, senderClientID string) ([]domain.Dispatch, error)
	ListBySenderProjected(ctx context.Context, senderClientID string, fields []string) ([]map[string]any, error)
	DeleteByRecipient(ctx context.Context, recipientClientID string) ([]domain.Dispatch, error)
	ClaimStalled(ctx context.Context, now, stalledBefore time.Time, maxRetries, limit int) ([]domain.Dispatch, error)
}

// TriggerStore — хранилище triggers (реализует repo.TriggerRepo).
type TriggerStore interface {
	Upsert(ctx context.Context, dispatchID string, expireAt time.Time) (*domain.Trigger, error)
	Get(ctx context.Context, dispatchID string) (*domain.Trigger, error)
	Delete(ctx context.Context, dispatchID string) error
	ClaimExpired(ctx context.Context, now time.Time, limit int) ([]domain.Trigger, error)
}

// SettingsStore — хранилище настроек клиентов (реализует repo.SettingsRepo).
type SettingsStore interface {
	Get(ctx context.Context, id string) (*domain.ClientSettings, error)
	Upsert(ctx context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error)
	Delete(ctx context.Context, id string) error
}

// NotificationSender отправляет dispatch провайдеру.
// recipient и sender могут быть nil, если настройки клиента неизвестны.
type NotificationSender interface {
	Send(ctx context.Context, d *domain.Dispatch, recipient, sender *domain.ClientSettings) (*domain.ProviderResult, error)
}

// Conductor — сервис надёжной доставки dispatch.
//
// Conductor:
//   - Получает команды из очереди conductor.inbound
//   - Классифицирует triggersAt: сейчас, устарел, отложен
//   - Отправляет dispatch с повторами (delivery.Run)
//   - Периодически забирает истёкшие triggers и отправляет их dispatch
//   - Возобновляет отправки, прерванные остановкой процесса
type Conductor struct {
	dispatches DispatchStore
	triggers   TriggerStore
	settings   SettingsStore
	sender     NotificationSender

	conn     *mq.Connection
	consumer *mq.Consumer

	deliverer *delivery.Deliverer
	policy    delivery.RetryPolicy

	gap          time.Duration
	pollInterval time.Duration
	batchSize    int
	stallTimeout time.Duration
	drainTimeout time.Duration
	now          func() time.Time

	// Контекст detached-отправок: переживает обработку сообщения
	// и отменяется только по истечении drainTimeout в Stop
	sendCtx    context.Context
	sendCancel context.CancelFunc

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Conductor.
type Config struct {
	// Stores
	Dispatches DispatchStore
	Triggers   TriggerStore
	Settings   SettingsStore

	// Sender
	Sender NotificationSender

	// MQ (nil — без consumer, только прямые вызовы)
	Conn *mq.Connection

	// Gap — допуск G вокруг now (default: 60s)
	Gap time.Duration

	// MaxRetries — повторы после первой попытки (default: 3, 0 — без повторов)
	MaxRetries *int

	// RetryDelay — фиксированная пауза между попытками (default: 1s)
	RetryDelay time.Duration

	// Polling triggers
	PollInterval time.Duration // default: 10s
	BatchSize    int           // default: 100

	// StallTimeout — сколько dispatch может пробыть в acquired или error
	// без изменений, прежде чем poller возобновит отправку (default: 5m).
	// Должен превышать таймаут провайдера и RetryDelay.
	StallTimeout time.Duration

	// DrainTimeout — сколько Stop ждёт начатые отправки (default: 10s)
	DrainTimeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт новый Conductor.
func New(cfg Config) *Conductor {
	gap := cfg.Gap
	if gap <= 0 {
		gap = defaultGap
	}

	maxRetries := defaultMaxRetries
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		maxRetries = *cfg.MaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	stallTimeout := cfg.StallTimeout
	if stallTimeout <= 0 {
		stallTimeout = defaultStallTimeout
	}

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sendCtx, sendCancel := context.WithCancel(context.Background())

	return &Conductor{
		dispatches:   cfg.Dispatches,
		triggers:     cfg.Triggers,
		settings:     cfg.Settings,
		sender:       cfg.Sender,
		conn:         cfg.Conn,
		deliverer:    delivery.New(delivery.Config{Logger: logger, Now: now}),
		policy:       delivery.Fixed(maxRetries, retryDelay),
		gap:          gap,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		stallTimeout: stallTimeout,
		drainTimeout: drainTimeout,
		now:          now,
		sendCtx:      sendCtx,
		sendCancel:   sendCancel,
		logger:       logger,
	}
}

// Start запускает Conductor.
//
// Запускает:
//   - Consumer для conductor.inbound
//   - Polling горутину для истёкших triggers и прерванных отправок
//
// Отмена ctx останавливает приём новых команд; начатые отправки
// дожидаются Stop.
func (c *Conductor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.sendCancel()
	c.sendCtx, c.sendCancel = context.WithCancel(context.WithoutCancel(ctx))

	c.logger.Info("starting conductor",
		"gap", c.gap,
		"max_retries", c.policy.MaxRetries,
		"retry_delay", c.policy.Delay,
		"poll_interval", c.pollInterval,
		"stall_timeout", c.stallTimeout,
	)

	if c.conn != nil {
		c.consumer = mq.NewConsumer(c.conn, c.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueConductorInbound),
			Handler:  c.HandleMessage,
			Prefetch: 10,
		})

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("inbound consumer error", "error", err)
			}
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pollLoop(ctx)
	}()

	c.logger.Info("conductor started")
	return nil
}

// Stop останавливает приём команд и ждёт начатые отправки не дольше
// drainTimeout. Оставшиеся отправки прерываются; их dispatch остаются
// в acquired или error и возобновляются poller'ом (ResumeStalled).
func (c *Conductor) Stop() {
	c.logger.Info("stopping conductor...")

	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if c.consumer != nil {
		c.consumer.Stop()
	}
	c.wg.Wait()

	if !c.drain(c.drainTimeout) {
		c.logger.Warn("drain timeout, interrupting sends", "drain_timeout", c.drainTimeout)
		c.sendCancel()
		c.deliverer.Wait()
	}
	c.sendCancel()

	c.logger.Info("conductor stopped")
}

// drain ждёт начатые отправки. false — не успели за timeout.
func (c *Conductor) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.deliverer.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// Wait ждёт завершения всех начатых отправок.
func (c *Conductor) Wait() {
	c.deliverer.Wait()
}

// Policy возвращает политику повторов отправки.
func (c *Conductor) Policy() delivery.RetryPolicy {
	return c.policy
}
