package conductor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// pollLoop периодически забирает истёкшие triggers и застрявшие отправки.
func (c *Conductor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	// Сразу при старте
	c.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Conductor) poll(ctx context.Context) {
	n, err := c.FireDueTriggers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("failed to fire due triggers", "error", err)
		}
		return
	}
	if n > 0 {
		c.logger.Info("fired due triggers", "count", n)
	}

	n, err = c.ResumeStalled(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("failed to resume stalled dispatches", "error", err)
		}
		return
	}
	if n > 0 {
		c.logger.Info("resumed stalled dispatches", "count", n)
	}
}

// ResumeStalled забирает dispatch'и, простоявшие в acquired или error
// дольше stallTimeout при оставшихся попытках, и продолжает их отправку.
// Так доотправляются dispatch'и, прерванные остановкой или падением
// реплики посреди попытки или между повторами.
func (c *Conductor) ResumeStalled(ctx context.Context) (int, error) {
	now := c.now()
	stalled, err := c.dispatches.ClaimStalled(ctx, now, now.Add(-c.stallTimeout), c.policy.MaxRetries, c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim stalled dispatches: %w", err)
	}
	for i := range stalled {
		c.resume(&stalled[i])
	}
	return len(stalled), nil
}

// FireDueTriggers забирает triggers с expireAt ≤ now и отправляет
// их dispatch. Trigger удаляется при захвате, поэтому каждый
// срабатывает один раз даже при нескольких репликах.
//
// Перед отправкой triggersAt dispatch классифицируется заново:
// устаревший не отправляется, перенесённый на потом получает trigger снова.
func (c *Conductor) FireDueTriggers(ctx context.Context) (int, error) {
	now := c.now()
	claimed, err := c.triggers.ClaimExpired(ctx, now, c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim expired triggers: %w", err)
	}

	for _, tr := range claimed {
		d, err := c.dispatches.Get(ctx, tr.DispatchID)
		if errors.Is(err, repo.ErrNotFound) {
			c.logger.Warn("trigger for missing dispatch", "dispatch_id", tr.DispatchID)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get dispatch %s: %w", tr.DispatchID, err)
		}

		telemetry.TriggersFired.Inc()
		logger := telemetry.WithDispatchID(c.logger, tr.DispatchID)
		logger.Debug("trigger fired",
			"triggered_id", tr.TriggeredID,
			"expire_at", tr.ExpireAt,
		)

		switch classify(d.TriggersAt, now, c.gap) {
		case timingStale:
			logger.Warn("stale trigger dropped", "triggers_at", d.TriggersAt, "gap", c.gap)
			telemetry.DispatchOutcomes.WithLabelValues(telemetry.OutcomeStale).Inc()
			continue
		case timingDeferred:
			next, err := c.triggers.Upsert(ctx, d.DispatchID, *d.TriggersAt)
			if err != nil {
				return 0, fmt.Errorf("re-arm trigger %s: %w", d.DispatchID, err)
			}
			if err := c.dispatches.SetTriggeredID(ctx, d.DispatchID, next.TriggeredID); err != nil {
				return 0, fmt.Errorf("set triggered id %s: %w", d.DispatchID, err)
			}
			logger.Info("trigger re-armed", "triggers_at", d.TriggersAt, "triggered_id", next.TriggeredID)
			continue
		}
		c.send(d)
	}
	return len(claimed), nil
}
