package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// session:user:{user_id} -> current session token
	sessionUserPrefix = "session:user:"
	// session:info:{token} -> SessionInfo JSON
	sessionInfoPrefix = "session:info:"
)

// SessionInfo is the allow-list entry stored per issued token. A token
// that validates as a JWT but has no entry here (logged out, rotated)
// is rejected.
type SessionInfo struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// TokenRepository keeps issued session tokens in Redis so logout can
// revoke them before their JWT expiry.
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository creates a token repository.
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

func sessionUserKey(userID int64) string {
	return fmt.Sprintf("%s%d", sessionUserPrefix, userID)
}

func sessionInfoKey(token string) string {
	return sessionInfoPrefix + token
}

// Save stores the token with its session info. A previous token of the
// same user is revoked first so one login replaces the last.
func (r *TokenRepository) Save(ctx context.Context, info *SessionInfo, token string, expiration time.Duration) error {
	if old, err := r.rdb.Get(ctx, sessionUserKey(info.UserID)).Result(); err == nil && old != "" {
		_ = r.rdb.Del(ctx, sessionInfoKey(old)).Err()
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal session info: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, sessionUserKey(info.UserID), token, expiration)
	pipe.Set(ctx, sessionInfoKey(token), data, expiration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

// Get returns the session info for a token, or nil when the token is
// unknown or revoked.
func (r *TokenRepository) Get(ctx context.Context, token string) (*SessionInfo, error) {
	data, err := r.rdb.Get(ctx, sessionInfoKey(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("unmarshal session info: %w", err)
	}
	return &info, nil
}

// Delete revokes a token (logout).
func (r *TokenRepository) Delete(ctx context.Context, userID int64, token string) error {
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, sessionInfoKey(token))
	pipe.Del(ctx, sessionUserKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}
