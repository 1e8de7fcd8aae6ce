package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// AppointmentRepo читает встречи для восстановления таймеров напоминаний.
type AppointmentRepo struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepo создаёт новый AppointmentRepo.
func NewAppointmentRepo(pool *pgxpool.Pool) *AppointmentRepo {
	return &AppointmentRepo{pool: pool}
}

// ListScheduledBetween возвращает назначенные встречи с началом в [from, to].
func (r *AppointmentRepo) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	query := `
		SELECT a.id, a.member_id, a.user_id, a.start, a.status, COALESCE(m.first_name, '')
		FROM appointments a
		LEFT JOIN members m ON m.id = a.member_id
		WHERE a.status = 'scheduled' AND a.start BETWEEN $1 AND $2
		ORDER BY a.start
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.MemberID, &a.UserID, &a.Start, &a.Status, &a.FirstName); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// FutureNotifyRepo — репозиторий отложенных произвольных уведомлений.
type FutureNotifyRepo struct {
	pool *pgxpool.Pool
}

// NewFutureNotifyRepo создаёт новый FutureNotifyRepo.
func NewFutureNotifyRepo(pool *pgxpool.Pool) *FutureNotifyRepo {
	return &FutureNotifyRepo{pool: pool}
}

// ListPendingBetween возвращает ожидающие уведомления с when в [from, to].
func (r *FutureNotifyRepo) ListPendingBetween(ctx context.Context, from, to time.Time) ([]domain.FutureNotify, error) {
	query := `
		SELECT id, member_id, user_id, type, "when", content, status
		FROM future_notifies
		WHERE status = 'pending' AND "when" BETWEEN $1 AND $2
		ORDER BY "when"
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list future notifies: %w", err)
	}
	defer rows.Close()

	var notifies []domain.FutureNotify
	for rows.Next() {
		var n domain.FutureNotify
		err := rows.Scan(
			&n.ID,
			&n.MemberID,
			&n.UserID,
			&n.Type,
			&n.Metadata.When,
			&n.Metadata.Content,
			&n.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan future notify: %w", err)
		}
		notifies = append(notifies, n)
	}
	return notifies, rows.Err()
}

// MarkDone помечает уведомление отправленным. Повторный вызов — no-op.
func (r *FutureNotifyRepo) MarkDone(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE future_notifies SET status = 'done' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark future notify done: %w", err)
	}
	return nil
}
