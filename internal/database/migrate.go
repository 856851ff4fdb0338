package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migrate applies the chat schema. It is called once by the serve command
// before the listener and the job workers start, so request handling never
// has to check whether initialization already ran. Every statement is
// idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Schema migrations applied")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		account_id UUID UNIQUE,
		type       INT NOT NULL DEFAULT 0,
		status     INT NOT NULL DEFAULT 1,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id),
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		about      TEXT NOT NULL DEFAULT '',
		join_key   INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id                 BIGSERIAL PRIMARY KEY,
		group_id           BIGINT NOT NULL REFERENCES groups (id),
		name               TEXT NOT NULL DEFAULT '',
		state              INT NOT NULL DEFAULT 1,
		latest_message_id  CHAR(28),
		skipped_message_id CHAR(28)
	)`,
	`CREATE TABLE IF NOT EXISTS room_members (
		room_id BIGINT NOT NULL REFERENCES rooms (id),
		user_id BIGINT NOT NULL REFERENCES users (id),
		status  INT NOT NULL DEFAULT 1,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS file_paths (
		id           BIGSERIAL PRIMARY KEY,
		path         TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           CHAR(28) PRIMARY KEY,
		parent_id    CHAR(28),
		room_id      BIGINT NOT NULL REFERENCES rooms (id),
		sender_id    BIGINT NOT NULL REFERENCES sessions (id),
		date_sent    TIMESTAMPTZ(6) NOT NULL,
		type         INT NOT NULL DEFAULT 1,
		status       INT NOT NULL DEFAULT 1,
		content      TEXT,
		date_deleted TIMESTAMPTZ,
		file_id      BIGINT REFERENCES file_paths (id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_date
		ON messages (room_id, date_sent)`,
	`CREATE TABLE IF NOT EXISTS http_requests (
		id               BIGSERIAL PRIMARY KEY,
		message_id       CHAR(28),
		url              TEXT NOT NULL,
		duration_ms      BIGINT NOT NULL DEFAULT 0,
		status_code      INT NOT NULL DEFAULT 0,
		request_content  TEXT,
		response_headers TEXT,
		response_content TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// The AI participant: user 1 and its acting session 1.
	`INSERT INTO users (id, type, name)
		VALUES (1, 3, 'AI') ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO sessions (id, user_id)
		VALUES (1, 1) ON CONFLICT (id) DO NOTHING`,
	`SELECT setval('users_id_seq', GREATEST((SELECT MAX(id) FROM users), 100))`,
	`SELECT setval('sessions_id_seq', GREATEST((SELECT MAX(id) FROM sessions), 100))`,
}
