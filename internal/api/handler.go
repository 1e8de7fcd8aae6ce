package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
)

// DispatchService — операции над dispatch, triggers и настройками клиентов
// (реализует conductor.Conductor).
type DispatchService interface {
	GetDispatch(ctx context.Context, dispatchID string) (*domain.Dispatch, error)
	ListDispatchesBySender(ctx context.Context, senderClientID string) ([]domain.Dispatch, error)
	ProjectDispatchesBySender(ctx context.Context, senderClientID string, fields []string) ([]map[string]any, error)
	DeleteClientDispatches(ctx context.Context, recipientClientID string) ([]domain.Dispatch, error)
	CancelDispatch(ctx context.Context, dispatchID string) error
	GetTrigger(ctx context.Context, dispatchID string) (*domain.Trigger, error)
	GetClientSettings(ctx context.Context, id string) (*domain.ClientSettings, error)
	UpdateClientSettings(ctx context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error)
	DeleteClientSettings(ctx context.Context, id string) error
}

// LeaseReader читает аренды лидерства (реализует repo.LeaseRepo).
type LeaseReader interface {
	Get(ctx context.Context, leaderType domain.LeaderType) (*domain.LeaderLease, error)
}

// Publisher отправляет команды conductor и доменные события (реализует mq.Publisher).
type Publisher interface {
	PublishConductor(ctx context.Context, msgType mq.MessageType, payload any) error
	PublishEvent(ctx context.Context, msgType mq.MessageType, payload any) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dispatches DispatchService
	leases     LeaseReader
	publisher  Publisher
	leaseTTL   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Dispatches DispatchService
	Leases     LeaseReader
	Publisher  Publisher

	// LeaseTTL — для признака expired в ответе /leases
	LeaseTTL time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatches: cfg.Dispatches,
		leases:     cfg.Leases,
		publisher:  cfg.Publisher,
		leaseTTL:   cfg.LeaseTTL,
		now:        now,
		logger:     logger,
	}
}
