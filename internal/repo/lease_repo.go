package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// LeaseRepo — репозиторий аренды лидерства (одна строка на LeaderType).
type LeaseRepo struct {
	pool *pgxpool.Pool
}

// NewLeaseRepo создаёт новый LeaseRepo.
func NewLeaseRepo(pool *pgxpool.Pool) *LeaseRepo {
	return &LeaseRepo{pool: pool}
}

// Get возвращает текущую аренду домена.
func (r *LeaseRepo) Get(ctx context.Context, leaderType domain.LeaderType) (*domain.LeaderLease, error) {
	query := `
		SELECT leader_type, owner_id, updated_at
		FROM leader_leases
		WHERE leader_type = $1
	`
	var lease domain.LeaderLease
	err := r.pool.QueryRow(ctx, query, leaderType).Scan(
		&lease.LeaderType,
		&lease.OwnerID,
		&lease.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lease: %w", err)
	}
	return &lease, nil
}

// Claim захватывает или продлевает аренду одним compare-and-swap запросом.
//
// Запись обновляется, только если она свободна, уже принадлежит ownerID
// или владелец не продлевал её дольше ttl. Возвращает true, если после
// запроса аренда принадлежит ownerID.
func (r *LeaseRepo) Claim(ctx context.Context, leaderType domain.LeaderType, ownerID string, now time.Time, ttl time.Duration) (bool, error) {
	var cutoff time.Time
	if ttl > 0 {
		cutoff = now.Add(-ttl)
	}

	query := `
		INSERT INTO leader_leases (leader_type, owner_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (leader_type) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, updated_at = EXCLUDED.updated_at
		WHERE leader_leases.owner_id = EXCLUDED.owner_id
		   OR leader_leases.updated_at < $4
		RETURNING owner_id
	`
	var owner string
	err := r.pool.QueryRow(ctx, query, leaderType, ownerID, now, cutoff).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		// Аренда занята живым владельцем
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim lease: %w", err)
	}
	return owner == ownerID, nil
}

// Release освобождает аренду, если она принадлежит ownerID.
func (r *LeaseRepo) Release(ctx context.Context, leaderType domain.LeaderType, ownerID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM leader_leases WHERE leader_type = $1 AND owner_id = $2`,
		leaderType, ownerID,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
