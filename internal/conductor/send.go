package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Courier/internal/delivery"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// send запускает фоновую отправку dispatch.
//
// Отправляется только dispatch в статусе received; первая попытка
// захватывает его переходом received → acquired, так что параллельные
// вызовы (повторное сообщение, poller) отправят его один раз.
func (c *Conductor) send(d *domain.Dispatch) {
	logger := telemetry.WithDispatchID(c.logger, d.DispatchID)

	if d.Status != domain.DispatchStatusReceived {
		logger.Debug("dispatch not in received, send skipped", "status", d.Status)
		return
	}

	c.deliver(logger, d.DispatchID, c.policy, false)
}

// resume продолжает отправку dispatch, уже забранного ClaimStalled,
// с попытками, оставшимися от c.policy.
func (c *Conductor) resume(d *domain.Dispatch) {
	logger := telemetry.WithDispatchID(c.logger, d.DispatchID)

	remaining := c.policy.MaxRetries - d.RetryCount
	if remaining < 0 {
		remaining = 0
	}
	logger.Warn("resuming stalled dispatch",
		"retry_count", d.RetryCount,
		"attempts_left", remaining+1,
	)
	telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeResumed).Inc()
	c.deliver(logger, d.DispatchID, delivery.Fixed(remaining, c.policy.Delay), true)
}

// deliver ставит отправку в Deliverer. claimed — dispatch уже в
// acquired, и первая попытка его не захватывает.
func (c *Conductor) deliver(logger *slog.Logger, id string, policy delivery.RetryPolicy, claimed bool) {
	c.deliverer.DeliverAt(c.sendCtx, delivery.Job{
		Policy: policy,
		Attempt: func(ctx context.Context, n int) error {
			return c.attempt(ctx, id, n == 1 && !claimed)
		},
		Hooks: delivery.Hooks{
			OnFailure: func(ctx context.Context, n int, err error) error {
				return c.recordFailure(ctx, logger, id, n, policy.MaxAttempts(), err)
			},
			BeforeRetry: func(ctx context.Context, n int) error {
				return c.reacquire(ctx, id)
			},
		},
		OnDone: func(err error) {
			c.finish(logger, err)
		},
	})
}

// attempt — одна попытка отправки. claim — захватить dispatch
// переходом received → acquired.
func (c *Conductor) attempt(ctx context.Context, dispatchID string, claim bool) error {
	var (
		d   *domain.Dispatch
		err error
	)
	if claim {
		d, err = c.dispatches.UpdateInternal(ctx, dispatchID, domain.DispatchUpdate{
			Status: domain.DispatchStatusAcquired,
			From:   []domain.DispatchStatus{domain.DispatchStatusReceived},
		}, c.now())
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidState) {
			return abort(errSkipped)
		}
	} else {
		d, err = c.dispatches.Get(ctx, dispatchID)
	}
	if err != nil {
		return abort(fmt.Errorf("load dispatch: %w", err))
	}
	if d.Status != domain.DispatchStatusAcquired {
		return abort(errSkipped)
	}

	recipient, err := c.clientSettings(ctx, d.RecipientClientID)
	if err != nil {
		return err
	}
	sender, err := c.clientSettings(ctx, d.SenderClientID)
	if err != nil {
		return err
	}

	telemetry.DispatchSendAttempts.Inc()
	result, err := c.sender.Send(ctx, d, recipient, sender)
	if err != nil {
		return err
	}

	// Повтор после успешной отправки продублировал бы уведомление
	if _, err := c.dispatches.UpdateInternal(ctx, dispatchID, domain.DispatchUpdate{
		Status:         domain.DispatchStatusDone,
		From:           []domain.DispatchStatus{domain.DispatchStatusAcquired},
		ProviderResult: result,
	}, c.now()); err != nil {
		return abort(fmt.Errorf("mark dispatch done: %w", err))
	}
	return nil
}

// recordFailure переводит dispatch в error и добавляет причину.
func (c *Conductor) recordFailure(ctx context.Context, logger *slog.Logger, dispatchID string, n, maxAttempts int, err error) error {
	if isAbort(err) {
		return err
	}

	_, uerr := c.dispatches.UpdateInternal(ctx, dispatchID, domain.DispatchUpdate{
		Status: domain.DispatchStatusError,
		From:   []domain.DispatchStatus{domain.DispatchStatusAcquired},
		FailureReason: &domain.FailureReason{
			Message: err.Error(),
			Stack:   fmt.Sprintf("%+v", err),
		},
	}, c.now())
	if uerr != nil {
		return fmt.Errorf("record send failure: %w", uerr)
	}

	logger.Warn("dispatch send failed",
		"attempt", n,
		"max_attempts", maxAttempts,
		"error", err,
	)
	telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeFailed).Inc()
	return nil
}

// reacquire возвращает dispatch из error в acquired перед повтором.
func (c *Conductor) reacquire(ctx context.Context, dispatchID string) error {
	_, err := c.dispatches.UpdateInternal(ctx, dispatchID, domain.DispatchUpdate{
		Status: domain.DispatchStatusAcquired,
		From:   []domain.DispatchStatus{domain.DispatchStatusError},
	}, c.now())
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidState) {
		return errSkipped
	}
	if err != nil {
		return fmt.Errorf("reacquire dispatch: %w", err)
	}
	return nil
}

func (c *Conductor) finish(logger *slog.Logger, err error) {
	switch {
	case err == nil:
		logger.Info("dispatch sent")
		telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeSent).Inc()
	case errors.Is(err, errSkipped):
		logger.Debug("dispatch send skipped")
	case errors.Is(err, delivery.ErrRetryExhausted):
		logger.Error("dispatch retries exhausted", "error", err)
		telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeExhausted).Inc()
	case errors.Is(err, context.Canceled):
		logger.Warn("dispatch send interrupted", "error", err)
	default:
		logger.Error("dispatch send aborted", "error", err)
	}
}

// clientSettings возвращает настройки клиента или nil, если их нет.
func (c *Conductor) clientSettings(ctx context.Context, id string) (*domain.ClientSettings, error) {
	if id == "" {
		return nil, nil
	}
	s, err := c.settings.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client settings %s: %w", id, err)
	}
	return s, nil
}
