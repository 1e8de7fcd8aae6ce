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

// MemberRepo читает member'ов для напоминаний о первом входе.
type MemberRepo struct {
	pool *pgxpool.Pool
}

// NewMemberRepo создаёт новый MemberRepo.
func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

// GetByID возвращает member по ID.
func (r *MemberRepo) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	query := `
		SELECT id, user_id, first_name, created_at, first_logged_in_at, nudged_at
		FROM members
		WHERE id = $1
	`
	var m domain.Member
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.UserID,
		&m.FirstName,
		&m.CreatedAt,
		&m.FirstLoggedInAt,
		&m.NudgedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// ListNudgeCandidates возвращает member'ов, зарегистрированных в [from, to],
// которые ещё не входили и не получали напоминание.
func (r *MemberRepo) ListNudgeCandidates(ctx context.Context, from, to time.Time) ([]domain.Member, error) {
	query := `
		SELECT id, user_id, first_name, created_at, first_logged_in_at, nudged_at
		FROM members
		WHERE created_at BETWEEN $1 AND $2
		  AND first_logged_in_at IS NULL
		  AND nudged_at IS NULL
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list nudge candidates: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.FirstName,
			&m.CreatedAt,
			&m.FirstLoggedInAt,
			&m.NudgedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MarkNudged фиксирует отправку напоминания member'у.
func (r *MemberRepo) MarkNudged(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE members SET nudged_at = $2 WHERE id = $1 AND nudged_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark member nudged: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}
