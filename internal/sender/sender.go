// Package sender — HTTP-клиент шлюза провайдеров уведомлений.
//
// Сам транспорт (SMS, push, звонки) живёт за шлюзом; здесь только
// запрос на отправку, отмена и ограничение частоты исходящих вызовов.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"golang.org/x/time/rate"
)

var (
	// ErrProviderStatus — шлюз ответил не-2xx.
	ErrProviderStatus = errors.New("provider returned error status")

	// ErrProviderRequest — запрос к шлюзу не выполнен.
	ErrProviderRequest = errors.New("provider request failed")
)

// Config — конфигурация HTTPSender.
type Config struct {
	// BaseURL — адрес шлюза провайдеров.
	BaseURL string

	// Timeout — таймаут одного запроса. Default: 10s
	Timeout time.Duration

	// RatePerSec — лимит запросов в секунду. 0 — без лимита.
	RatePerSec float64

	// Burst — допустимый всплеск. Default: 1
	Burst int

	// Client — HTTP-клиент (для тестов).
	Client *http.Client
}

// HTTPSender отправляет dispatch'и через HTTP-шлюз.
type HTTPSender struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// New создаёт HTTPSender.
func New(cfg Config) *HTTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &HTTPSender{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

type sendRequest struct {
	Dispatch  *domain.Dispatch       `json:"dispatch"`
	Recipient *domain.ClientSettings `json:"recipient,omitempty"`
	Sender    *domain.ClientSettings `json:"sender,omitempty"`
}

// Send передаёт dispatch шлюзу вместе с настройками получателя и отправителя.
// Отсутствующие настройки передаются как null.
func (s *HTTPSender) Send(ctx context.Context, d *domain.Dispatch, recipient, sender *domain.ClientSettings) (*domain.ProviderResult, error) {
	var result domain.ProviderResult
	err := s.post(ctx, "/send", sendRequest{Dispatch: d, Recipient: recipient, Sender: sender}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel отменяет отправку на стороне провайдера.
func (s *HTTPSender) Cancel(ctx context.Context, providerID string) error {
	return s.post(ctx, "/cancel", map[string]string{"id": providerID}, nil)
}

func (s *HTTPSender) post(ctx context.Context, path string, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %v", ErrProviderRequest, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrProviderRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrProviderRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrProviderRequest, err)
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
