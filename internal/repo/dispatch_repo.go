package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

const dispatchColumns = `
	dispatch_id, correlation_id, sender_client_id, recipient_client_id,
	service_name, notification_type, content, metadata, status,
	retry_count, failure_reasons, triggers_at, triggered_id,
	appointment_id, provider_result, sent_at, created_at, updated_at`

// DispatchRepo — репозиторий dispatch'ей.
type DispatchRepo struct {
	pool *pgxpool.Pool
}

// NewDispatchRepo создаёт новый DispatchRepo.
func NewDispatchRepo(pool *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{pool: pool}
}

// Upsert создаёт dispatch или накладывает на него patch.
//
// Поля, отсутствующие в patch, сохраняют прежние значения.
// Статус received проставляется только при вставке без статуса;
// у существующей записи статус из patch подчиняется тем же правилам,
// что и UpdateInternal: из done и canceled выхода нет, canceled — только из received.
func (r *DispatchRepo) Upsert(ctx context.Context, p domain.DispatchPatch, now time.Time) (*domain.Dispatch, error) {
	var metadataJSON []byte
	if p.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}
	var notificationType *string
	if p.NotificationType != nil {
		t := string(*p.NotificationType)
		notificationType = &t
	}

	query := `
		INSERT INTO dispatches (
			dispatch_id, correlation_id, sender_client_id, recipient_client_id,
			service_name, notification_type, content, metadata, status,
			triggers_at, appointment_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::text, 'received'), $10, $11, $12, $12)
		ON CONFLICT (dispatch_id) DO UPDATE SET
			correlation_id      = COALESCE(EXCLUDED.correlation_id, dispatches.correlation_id),
			sender_client_id    = COALESCE(EXCLUDED.sender_client_id, dispatches.sender_client_id),
			recipient_client_id = COALESCE(EXCLUDED.recipient_client_id, dispatches.recipient_client_id),
			service_name        = COALESCE(EXCLUDED.service_name, dispatches.service_name),
			notification_type   = COALESCE(EXCLUDED.notification_type, dispatches.notification_type),
			content             = COALESCE(EXCLUDED.content, dispatches.content),
			metadata            = COALESCE(EXCLUDED.metadata, dispatches.metadata),
			status              = CASE
				WHEN $9::text IS NULL
					OR dispatches.status IN ('done', 'canceled')
					OR ($9::text = 'canceled' AND dispatches.status <> 'received')
				THEN dispatches.status
				ELSE $9::text
			END,
			triggers_at         = COALESCE(EXCLUDED.triggers_at, dispatches.triggers_at),
			appointment_id      = COALESCE(EXCLUDED.appointment_id, dispatches.appointment_id),
			updated_at          = EXCLUDED.updated_at
		RETURNING ` + dispatchColumns

	return scanDispatch(r.pool.QueryRow(ctx, query,
		p.DispatchID,
		p.CorrelationID,
		p.SenderClientID,
		p.RecipientClientID,
		p.ServiceName,
		notificationType,
		p.Content,
		metadataJSON,
		status,
		p.TriggersAt,
		p.AppointmentID,
		now,
	))
}

// Get возвращает dispatch по ID.
func (r *DispatchRepo) Get(ctx context.Context, dispatchID string) (*domain.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE dispatch_id = $1`
	return scanDispatch(r.pool.QueryRow(ctx, query, dispatchID))
}

// UpdateInternal применяет внутреннее обновление статуса одним условным UPDATE.
//
// Запрещены выход из canceled и done, а canceled допустим только из received.
// Причина ошибки дописывается в failure_reasons вместе с retry_count + 1.
// Возвращает ErrNotFound, если dispatch нет, и ErrInvalidState, если
// переход запрещён.
func (r *DispatchRepo) UpdateInternal(ctx context.Context, dispatchID string, u domain.DispatchUpdate, now time.Time) (*domain.Dispatch, error) {
	var reasonJSON, resultJSON []byte
	var err error
	if u.FailureReason != nil {
		if reasonJSON, err = json.Marshal(u.FailureReason); err != nil {
			return nil, fmt.Errorf("marshal failure reason: %w", err)
		}
	}
	if u.ProviderResult != nil {
		if resultJSON, err = json.Marshal(u.ProviderResult); err != nil {
			return nil, fmt.Errorf("marshal provider result: %w", err)
		}
	}

	from := make([]string, 0, len(u.From))
	for _, s := range u.From {
		from = append(from, string(s))
	}

	query := `
		UPDATE dispatches SET
			status          = $2::text,
			failure_reasons = CASE WHEN $3::jsonb IS NULL THEN failure_reasons
			                       ELSE failure_reasons || jsonb_build_array($3::jsonb) END,
			retry_count     = retry_count + CASE WHEN $3::jsonb IS NULL THEN 0 ELSE 1 END,
			provider_result = COALESCE($4::jsonb, provider_result),
			sent_at         = CASE WHEN $2::text = 'done' THEN $5 ELSE sent_at END,
			updated_at      = $5
		WHERE dispatch_id = $1
		  AND status NOT IN ('canceled', 'done')
		  AND ($2::text <> 'canceled' OR status = 'received')
		  AND (cardinality($6::text[]) = 0 OR status = ANY($6::text[]))
		RETURNING ` + dispatchColumns

	d, err := scanDispatch(r.pool.QueryRow(ctx, query,
		dispatchID,
		string(u.Status),
		reasonJSON,
		resultJSON,
		now,
		from,
	))
	if !errors.Is(err, ErrNotFound) {
		return d, err
	}

	// Ни одна строка не обновлена: отличаем отсутствие от запрещённого перехода
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dispatches WHERE dispatch_id = $1)`,
		dispatchID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check dispatch: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrInvalidState
}

// SetTriggeredID проставляет dispatch ссылку на его trigger.
func (r *DispatchRepo) SetTriggeredID(ctx context.Context, dispatchID, triggeredID string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE dispatches SET triggered_id = $2, updated_at = NOW() WHERE dispatch_id = $1`,
		dispatchID, triggeredID,
	)
	if err != nil {
		return fmt.Errorf("set triggered id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBySender возвращает dispatch'и отправителя, новые первыми.
func (r *DispatchRepo) ListBySender(ctx context.Context, senderClientID string) ([]domain.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + `
		FROM dispatches
		WHERE sender_client_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, senderClientID)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	return collectDispatches(rows)
}

// ListBySenderProjected возвращает только запрошенные поля dispatch'ей.
//
// fields — JSON-имена полей (см. domain.DispatchFields); ключи результата
// совпадают с ними. Неизвестное поле — ErrUnknownField.
func (r *DispatchRepo) ListBySenderProjected(ctx context.Context, senderClientID string, fields []string) ([]map[string]any, error) {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := domain.DispatchFields[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		cols = append(cols, fmt.Sprintf(`%s AS "%s"`, col, f))
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: empty projection", ErrUnknownField)
	}

	query := `SELECT ` + strings.Join(cols, ", ") + `
		FROM dispatches
		WHERE sender_client_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, senderClientID)
	if err != nil {
		return nil, fmt.Errorf("list projected dispatches: %w", err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect projected dispatches: %w", err)
	}
	if result == nil {
		result = []map[string]any{}
	}
	return result, nil
}

// DeleteByRecipient удаляет все dispatch'и получателя и возвращает их.
// Пустой результат — не ошибка.
func (r *DispatchRepo) DeleteByRecipient(ctx context.Context, recipientClientID string) ([]domain.Dispatch, error) {
	query := `DELETE FROM dispatches WHERE recipient_client_id = $1 RETURNING ` + dispatchColumns
	rows, err := r.pool.Query(ctx, query, recipientClientID)
	if err != nil {
		return nil, fmt.Errorf("delete dispatches: %w", err)
	}
	return collectDispatches(rows)
}

// ClaimStalled атомарно забирает до limit dispatch'ей, застрявших в
// acquired или error дольше stalledBefore, у которых остались попытки
// (retry_count ≤ maxRetries). Забранные переводятся в acquired с
// updated_at = now, поэтому другая реплика их не получит.
func (r *DispatchRepo) ClaimStalled(ctx context.Context, now, stalledBefore time.Time, maxRetries, limit int) ([]domain.Dispatch, error) {
	query := `
		UPDATE dispatches SET status = 'acquired', updated_at = $1
		WHERE dispatch_id IN (
			SELECT dispatch_id FROM dispatches
			WHERE status IN ('acquired', 'error')
				AND updated_at <= $2
				AND retry_count <= $3
			ORDER BY updated_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + dispatchColumns
	rows, err := r.pool.Query(ctx, query, now, stalledBefore, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("claim stalled dispatches: %w", err)
	}
	return collectDispatches(rows)
}

// --- Helpers ---

func collectDispatches(rows pgx.Rows) ([]domain.Dispatch, error) {
	defer rows.Close()

	dispatches := []domain.Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, *d)
	}
	return dispatches, rows.Err()
}

// scanDispatch сканирует одну строку в Dispatch.
func scanDispatch(row pgx.Row) (*domain.Dispatch, error) {
	var d domain.Dispatch
	var (
		correlationID, senderID, recipientID, serviceName *string
		notificationType, content, triggeredID, apptID    *string
		metadataJSON, reasonsJSON, resultJSON             []byte
	)

	err := row.Scan(
		&d.DispatchID,
		&correlationID,
		&senderID,
		&recipientID,
		&serviceName,
		&notificationType,
		&content,
		&metadataJSON,
		&d.Status,
		&d.RetryCount,
		&reasonsJSON,
		&d.TriggersAt,
		&triggeredID,
		&apptID,
		&resultJSON,
		&d.SentAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dispatch: %w", err)
	}

	d.CorrelationID = derefString(correlationID)
	d.SenderClientID = derefString(senderID)
	d.RecipientClientID = derefString(recipientID)
	d.ServiceName = derefString(serviceName)
	d.NotificationType = domain.NotificationType(derefString(notificationType))
	d.Content = derefString(content)
	d.TriggeredID = derefString(triggeredID)
	d.AppointmentID = derefString(apptID)

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	d.FailureReasons = []domain.FailureReason{}
	if reasonsJSON != nil {
		if err := json.Unmarshal(reasonsJSON, &d.FailureReasons); err != nil {
			return nil, fmt.Errorf("unmarshal failure reasons: %w", err)
		}
	}
	if resultJSON != nil {
		d.ProviderResult = &domain.ProviderResult{}
		if err := json.Unmarshal(resultJSON, d.ProviderResult); err != nil {
			return nil, fmt.Errorf("unmarshal provider result: %w", err)
		}
	}
	return &d, nil
}
