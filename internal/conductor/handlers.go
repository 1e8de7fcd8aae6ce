package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// HandleMessage — mq.Handler для очереди conductor.inbound.
//
// Ошибки разбора, проверки и неизвестный тип помечаются mq.Reject:
// сообщение уходит в DLQ без повторной доставки.
func (c *Conductor) HandleMessage(ctx context.Context, d *mq.Delivery) error {
	err := c.route(ctx, &d.Message)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnknownMessageType) || errors.Is(err, ErrInvalidPayload) {
		return mq.Reject(err)
	}
	return err
}

func (c *Conductor) route(ctx context.Context, msg *mq.Message) error {
	switch msg.Type {
	case mq.TypeUpdateClientSettings:
		p, err := mq.ParsePayload[domain.ClientSettingsPatch](msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.HandleUpdateClientSettings(ctx, p)

	case mq.TypeDeleteClientSettings:
		ref, err := mq.ParsePayload[domain.ClientRef](msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.HandleDeleteClientSettings(ctx, ref)

	case mq.TypeCreateDispatch:
		p, err := mq.ParsePayload[domain.DispatchPatch](msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.HandleCreateDispatch(ctx, p)

	case mq.TypeDeleteDispatch:
		ref, err := mq.ParsePayload[domain.DispatchRef](msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.HandleDeleteDispatch(ctx, ref)

	default:
		c.logger.Error("unknown message type", "type", msg.Type, "message_id", msg.ID)
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}

// HandleUpdateClientSettings сохраняет настройки клиента.
// Отсутствующие поля не перезаписывают сохранённые.
func (c *Conductor) HandleUpdateClientSettings(ctx context.Context, p domain.ClientSettingsPatch) error {
	if p.ID == "" {
		return fmt.Errorf("%w: client settings id is required", ErrInvalidPayload)
	}
	if _, err := c.settings.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert client settings: %w", err)
	}
	c.logger.Debug("client settings updated", "client_id", p.ID)
	return nil
}

// HandleDeleteClientSettings удаляет настройки клиента.
func (c *Conductor) HandleDeleteClientSettings(ctx context.Context, ref domain.ClientRef) error {
	if ref.ID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidPayload)
	}
	if err := c.DeleteClientSettings(ctx, ref.ID); err != nil {
		return fmt.Errorf("delete client settings: %w", err)
	}
	c.logger.Debug("client settings deleted", "client_id", ref.ID)
	return nil
}

// HandleCreateDispatch сохраняет dispatch и решает, когда его отправить.
//
// Планируется только dispatch в статусе received. Классификация идёт
// по triggersAt после слияния с сохранённой записью:
//   - устарел — dispatch сохранён, но не отправляется, прежний trigger удаляется
//   - слишком рано — upsert trigger, отправка отложена
//   - сейчас — отправка в фоне с повторами
func (c *Conductor) HandleCreateDispatch(ctx context.Context, p domain.DispatchPatch) error {
	if p.DispatchID == "" {
		return fmt.Errorf("%w: dispatchId is required", ErrInvalidPayload)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, *p.Status)
	}

	now := c.now()
	d, err := c.dispatches.Upsert(ctx, p, now)
	if err != nil {
		return fmt.Errorf("upsert dispatch: %w", err)
	}

	logger := telemetry.WithDispatchID(c.logger, d.DispatchID)

	// Уже отправляемый, отправленный или отменённый dispatch повторно не планируется
	if d.Status != domain.DispatchStatusReceived {
		logger.Info("dispatch already processed, resubmission not scheduled", "status", d.Status)
		return nil
	}

	switch classify(d.TriggersAt, now, c.gap) {
	case timingStale:
		if d.TriggeredID != "" {
			if err := c.triggers.Delete(ctx, d.DispatchID); err != nil {
				return fmt.Errorf("delete superseded trigger: %w", err)
			}
		}
		logger.Warn("stale dispatch dropped",
			"triggers_at", d.TriggersAt,
			"gap", c.gap,
		)
		telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeStale).Inc()
		return nil

	case timingDeferred:
		tr, err := c.triggers.Upsert(ctx, d.DispatchID, *d.TriggersAt)
		if err != nil {
			return fmt.Errorf("upsert trigger: %w", err)
		}
		if err := c.dispatches.SetTriggeredID(ctx, d.DispatchID, tr.TriggeredID); err != nil {
			return fmt.Errorf("set triggered id: %w", err)
		}
		logger.Info("dispatch deferred",
			"expire_at", tr.ExpireAt,
			"triggered_id", tr.TriggeredID,
		)
		telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeDeferred).Inc()
		return nil
	}

	// Ранее отложенный dispatch теперь уходит сразу
	if d.TriggeredID != "" {
		if err := c.triggers.Delete(ctx, d.DispatchID); err != nil {
			logger.Warn("failed to delete superseded trigger", "error", err)
		}
	}

	c.send(d)
	return nil
}

// HandleDeleteDispatch отменяет dispatch.
//
// Отмена возможна только из received; отсутствующий или уже
// обработанный dispatch — предупреждение, не ошибка.
func (c *Conductor) HandleDeleteDispatch(ctx context.Context, ref domain.DispatchRef) error {
	if ref.DispatchID == "" {
		return fmt.Errorf("%w: dispatchId is required", ErrInvalidPayload)
	}

	err := c.CancelDispatch(ctx, ref.DispatchID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.logger.Warn("cancel of missing dispatch", "dispatch_id", ref.DispatchID)
		return nil
	case errors.Is(err, repo.ErrInvalidState):
		c.logger.Warn("dispatch is not cancelable", "dispatch_id", ref.DispatchID)
		return nil
	}
	return err
}

// CancelDispatch переводит dispatch в canceled и удаляет его trigger.
// Возвращает repo.ErrNotFound или repo.ErrInvalidState.
func (c *Conductor) CancelDispatch(ctx context.Context, dispatchID string) error {
	_, err := c.dispatches.UpdateInternal(ctx, dispatchID, domain.DispatchUpdate{
		Status: domain.DispatchStatusCanceled,
		From:   []domain.DispatchStatus{domain.DispatchStatusReceived},
	}, c.now())
	if err != nil {
		return err
	}

	if err := c.triggers.Delete(ctx, dispatchID); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}

	c.logger.Info("dispatch canceled", "dispatch_id", dispatchID)
	telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeCanceled).Inc()
	return nil
}
