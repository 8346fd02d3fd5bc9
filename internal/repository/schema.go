package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. The unique index on the sorted pair is
// what makes "at most one conversation per pair" hold under concurrent
// first sends.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGINT PRIMARY KEY,
    full_name     TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    profile_pic   TEXT NOT NULL DEFAULT '',
    is_online     BOOLEAN NOT NULL DEFAULT FALSE,
    last_seen     TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversations (
    id              BIGINT PRIMARY KEY,
    user_low        BIGINT NOT NULL REFERENCES users(id),
    user_high       BIGINT NOT NULL REFERENCES users(id),
    unread_low      INT NOT NULL DEFAULT 0 CHECK (unread_low >= 0),
    unread_high     INT NOT NULL DEFAULT 0 CHECK (unread_high >= 0),
    last_message_id BIGINT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (user_low < user_high),
    UNIQUE (user_low, user_high)
);

CREATE TABLE IF NOT EXISTS messages (
    id              BIGINT PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id),
    client_msg_id   TEXT NOT NULL DEFAULT '',
    sender_id       BIGINT NOT NULL REFERENCES users(id),
    receiver_id     BIGINT NOT NULL REFERENCES users(id),
    text            TEXT NOT NULL DEFAULT '',
    image           TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'sent'
                    CHECK (status IN ('sent', 'delivered', 'read')),
    read_at         TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages (conversation_id, created_at DESC, id DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
