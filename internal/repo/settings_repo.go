package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// SettingsRepo — репозиторий настроек доставки клиентов.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettingsRepo создаёт новый SettingsRepo.
func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get возвращает настройки клиента.
func (r *SettingsRepo) Get(ctx context.Context, id string) (*domain.ClientSettings, error) {
	query := `
		SELECT id, org_name, phone, platform, external_user_id,
		       is_push_notifications_enabled, is_appointments_reminder_enabled,
		       first_name, avatar, first_logged_in_at
		FROM client_settings
		WHERE id = $1
	`
	return scanSettings(r.pool.QueryRow(ctx, query, id))
}

// Upsert создаёт или частично обновляет настройки.
// Nil-поля patch не перезаписывают сохранённые значения.
func (r *SettingsRepo) Upsert(ctx context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error) {
	var platform *string
	if p.Platform != nil {
		s := string(*p.Platform)
		platform = &s
	}

	query := `
		INSERT INTO client_settings (
			id, org_name, phone, platform, external_user_id,
			is_push_notifications_enabled, is_appointments_reminder_enabled,
			first_name, avatar, first_logged_in_at
		)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::boolean, false), COALESCE($7::boolean, false), $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			org_name                         = COALESCE(EXCLUDED.org_name, client_settings.org_name),
			phone                            = COALESCE(EXCLUDED.phone, client_settings.phone),
			platform                         = COALESCE(EXCLUDED.platform, client_settings.platform),
			external_user_id                 = COALESCE(EXCLUDED.external_user_id, client_settings.external_user_id),
			is_push_notifications_enabled    = COALESCE($6::boolean, client_settings.is_push_notifications_enabled),
			is_appointments_reminder_enabled = COALESCE($7::boolean, client_settings.is_appointments_reminder_enabled),
			first_name                       = COALESCE(EXCLUDED.first_name, client_settings.first_name),
			avatar                           = COALESCE(EXCLUDED.avatar, client_settings.avatar),
			first_logged_in_at               = COALESCE(EXCLUDED.first_logged_in_at, client_settings.first_logged_in_at)
		RETURNING id, org_name, phone, platform, external_user_id,
		          is_push_notifications_enabled, is_appointments_reminder_enabled,
		          first_name, avatar, first_logged_in_at
	`
	return scanSettings(r.pool.QueryRow(ctx, query,
		p.ID,
		p.OrgName,
		p.Phone,
		platform,
		p.ExternalUserID,
		p.IsPushNotificationsEnabled,
		p.IsAppointmentsReminderEnabled,
		p.FirstName,
		p.Avatar,
		p.FirstLoggedInAt,
	))
}

// Delete удаляет настройки клиента. Отсутствие записи — не ошибка.
func (r *SettingsRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM client_settings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete client settings: %w", err)
	}
	return nil
}

func scanSettings(row pgx.Row) (*domain.ClientSettings, error) {
	var s domain.ClientSettings
	var orgName, phone, platform, externalUserID, firstName, avatar *string

	err := row.Scan(
		&s.ID,
		&orgName,
		&phone,
		&platform,
		&externalUserID,
		&s.IsPushNotificationsEnabled,
		&s.IsAppointmentsReminderEnabled,
		&firstName,
		&avatar,
		&s.FirstLoggedInAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client settings: %w", err)
	}

	s.OrgName = derefString(orgName)
	s.Phone = derefString(phone)
	s.Platform = domain.Platform(derefString(platform))
	s.ExternalUserID = derefString(externalUserID)
	s.FirstName = derefString(firstName)
	s.Avatar = derefString(avatar)
	return &s, nil
}
