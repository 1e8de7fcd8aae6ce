package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — DDL таблиц сервиса.
//
// Таблицы appointments, future_notifies и members принадлежат
// CRUD-сервисам; здесь объявлены только нужные планировщику колонки.
const schema = `
CREATE TABLE IF NOT EXISTS leader_leases (
	leader_type TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS client_settings (
	id                               TEXT PRIMARY KEY,
	org_name                         TEXT,
	phone                            TEXT,
	platform                         TEXT,
	external_user_id                 TEXT,
	is_push_notifications_enabled    BOOLEAN NOT NULL DEFAULT false,
	is_appointments_reminder_enabled BOOLEAN NOT NULL DEFAULT false,
	first_name                       TEXT,
	avatar                           TEXT,
	first_logged_in_at               TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dispatches (
	dispatch_id         TEXT PRIMARY KEY,
	correlation_id      TEXT,
	sender_client_id    TEXT,
	recipient_client_id TEXT,
	service_name        TEXT,
	notification_type   TEXT,
	content             TEXT,
	metadata            JSONB,
	status              TEXT NOT NULL DEFAULT 'received',
	retry_count         INTEGER NOT NULL DEFAULT 0,
	failure_reasons     JSONB NOT NULL DEFAULT '[]'::jsonb,
	triggers_at         TIMESTAMPTZ,
	triggered_id        TEXT,
	appointment_id      TEXT,
	provider_result     JSONB,
	sent_at             TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS dispatches_sender_idx ON dispatches (sender_client_id);
CREATE INDEX IF NOT EXISTS dispatches_recipient_idx ON dispatches (recipient_client_id);
CREATE INDEX IF NOT EXISTS dispatches_stalled_idx ON dispatches (updated_at) WHERE status IN ('acquired', 'error');

CREATE TABLE IF NOT EXISTS triggers (
	dispatch_id  TEXT PRIMARY KEY,
	expire_at    TIMESTAMPTZ NOT NULL,
	triggered_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS triggers_expire_at_idx ON triggers (expire_at);

CREATE TABLE IF NOT EXISTS appointments (
	id        TEXT PRIMARY KEY,
	member_id TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	start     TIMESTAMPTZ NOT NULL,
	status    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS appointments_start_idx ON appointments (start) WHERE status = 'scheduled';

CREATE TABLE IF NOT EXISTS future_notifies (
	id        TEXT PRIMARY KEY,
	member_id TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	type      TEXT NOT NULL,
	"when"    TIMESTAMPTZ NOT NULL,
	content   TEXT NOT NULL,
	status    TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS members (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	first_name         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	first_logged_in_at TIMESTAMPTZ,
	nudged_at          TIMESTAMPTZ
);
`

// Migrate создаёт недостающие таблицы и индексы.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
