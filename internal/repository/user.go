package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/model"
)

var ErrEmailExists = apperr.New(apperr.KindInvalidArgument, "email already exists")

const userColumns = `id, full_name, email, password_hash, profile_pic, is_online, last_seen, created_at, updated_at`

// UserRepository is the account data access layer.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.ProfilePic,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, err
	}
	return u, nil
}

// Create inserts a new account. A duplicate email is translated to
// ErrEmailExists instead of leaking the constraint violation.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, full_name, email, password_hash, profile_pic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		user.ProfilePic,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByID fetches an account by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByEmail fetches an account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// Exists reports whether an account with the id exists.
func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// UpdateProfilePic sets the avatar URL and returns the updated account.
func (r *UserRepository) UpdateProfilePic(ctx context.Context, id int64, url string) (*model.User, error) {
	query := `
		UPDATE users SET profile_pic = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, url))
}

// SetOnline flips the presence flag. Going offline stamps last_seen.
func (r *UserRepository) SetOnline(ctx context.Context, id int64, online bool) (*model.User, error) {
	var query string
	if online {
		query = `
			UPDATE users SET is_online = TRUE, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + userColumns
	} else {
		query = `
			UPDATE users SET is_online = FALSE, last_seen = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING ` + userColumns
	}
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// ListOthers returns every account except the viewer, online first, then
// by name. The sidebar service decorates these with unread counters.
func (r *UserRepository) ListOthers(ctx context.Context, viewerID int64) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id <> $1
		ORDER BY is_online DESC, full_name ASC
	`
	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
