package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// TriggerRepo — репозиторий отложенных trigger'ов.
type TriggerRepo struct {
	pool *pgxpool.Pool
}

// NewTriggerRepo создаёт новый TriggerRepo.
func NewTriggerRepo(pool *pgxpool.Pool) *TriggerRepo {
	return &TriggerRepo{pool: pool}
}

// Upsert создаёт trigger для dispatch или переносит его expire_at.
// Ключ — dispatch_id, поэтому triggered_id при повторной отправке не меняется.
func (r *TriggerRepo) Upsert(ctx context.Context, dispatchID string, expireAt time.Time) (*domain.Trigger, error) {
	query := `
		INSERT INTO triggers (dispatch_id, expire_at, triggered_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (dispatch_id) DO UPDATE SET expire_at = EXCLUDED.expire_at
		RETURNING dispatch_id, expire_at, triggered_id
	`
	return scanTrigger(r.pool.QueryRow(ctx, query, dispatchID, expireAt, uuid.NewString()))
}

// Get возвращает trigger по ID dispatch.
func (r *TriggerRepo) Get(ctx context.Context, dispatchID string) (*domain.Trigger, error) {
	query := `
		SELECT dispatch_id, expire_at, triggered_id
		FROM triggers
		WHERE dispatch_id = $1
	`
	return scanTrigger(r.pool.QueryRow(ctx, query, dispatchID))
}

// Delete удаляет trigger. Отсутствие trigger'а — не ошибка.
func (r *TriggerRepo) Delete(ctx context.Context, dispatchID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM triggers WHERE dispatch_id = $1`, dispatchID); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}

// ClaimExpired атомарно забирает до limit истёкших trigger'ов.
//
// FOR UPDATE SKIP LOCKED гарантирует, что параллельные реплики
// conductor'а не получат один и тот же trigger.
func (r *TriggerRepo) ClaimExpired(ctx context.Context, now time.Time, limit int) ([]domain.Trigger, error) {
	query := `
		DELETE FROM triggers
		WHERE dispatch_id IN (
			SELECT dispatch_id FROM triggers
			WHERE expire_at <= $1
			ORDER BY expire_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING dispatch_id, expire_at, triggered_id
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, *t)
	}
	return triggers, rows.Err()
}

func scanTrigger(row pgx.Row) (*domain.Trigger, error) {
	var t domain.Trigger
	err := row.Scan(&t.DispatchID, &t.ExpireAt, &t.TriggeredID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trigger: %w", err)
	}
	return &t, nil
}
