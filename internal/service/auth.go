package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/blob"
	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/repository"
	"github.com/AnupamNeon/Chat-app/pkg/jwt"
	"github.com/AnupamNeon/Chat-app/pkg/snowflake"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	ErrSessionRevoked     = apperr.New(apperr.KindUnauthenticated, "session expired or revoked")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the slice of the user repository the auth flow needs.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfilePic(ctx context.Context, id int64, url string) (*model.User, error)
}

// SessionStore is the token allow-list. A token absent from the store
// is dead even when its signature still verifies.
type SessionStore interface {
	Save(ctx context.Context, info *repository.SessionInfo, token string, expiration time.Duration) error
	Get(ctx context.Context, token string) (*repository.SessionInfo, error)
	Delete(ctx context.Context, userID int64, token string) error
}

type SignupRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic" binding:"required"`
}

// AuthService handles signup, login, session lifecycle and profile
// updates.
type AuthService struct {
	users         UserStore
	sessions      SessionStore
	tokens        *jwt.Service
	blobs         blob.Store
	node          *snowflake.Node
	uploadTimeout time.Duration
}

func NewAuthService(users UserStore, sessions SessionStore, tokens *jwt.Service, blobs blob.Store, node *snowflake.Node, uploadTimeout time.Duration) *AuthService {
	if uploadTimeout <= 0 {
		uploadTimeout = 30 * time.Second
	}
	return &AuthService{
		users:         users,
		sessions:      sessions,
		tokens:        tokens,
		blobs:         blobs,
		node:          node,
		uploadTimeout: uploadTimeout,
	}
}

// Signup creates the account and opens a session in one step.
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*model.User, string, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return nil, "", apperr.New(apperr.KindInvalidArgument, "all fields are required")
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, "", apperr.New(apperr.KindInvalidArgument, "invalid email format")
	}
	if len(req.Password) < 6 {
		return nil, "", apperr.New(apperr.KindInvalidArgument, "password must be at least 6 characters")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user := &model.User{
		ID:           s.node.Generate().Int64(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and opens a fresh session, revoking any
// previous one for the user.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*model.User, string, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, "", apperr.New(apperr.KindInvalidArgument, "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout tears the session down. The token dies immediately even
// though its signature stays valid until expiry.
func (s *AuthService) Logout(ctx context.Context, userID int64, token string) error {
	return s.sessions.Delete(ctx, userID, token)
}

// Check returns the current account for an authenticated session.
func (s *AuthService) Check(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile uploads the new avatar and persists its URL. Nothing
// changes when the upload fails.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*model.User, error) {
	if strings.TrimSpace(req.ProfilePic) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "profile pic is required")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	url, err := s.blobs.Upload(uploadCtx, req.ProfilePic)
	if err != nil {
		return nil, err
	}

	return s.users.UpdateProfilePic(ctx, userID, url)
}

// ValidateSession checks signature, expiry and the allow-list and
// returns the session's user id.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (int64, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, apperr.New(apperr.KindUnauthenticated, "token has expired")
		}
		return 0, apperr.New(apperr.KindUnauthenticated, "invalid token")
	}

	info, err := s.sessions.Get(ctx, token)
	if err != nil {
		return 0, err
	}
	if info == nil || info.UserID != claims.UserID {
		return 0, ErrSessionRevoked
	}
	return claims.UserID, nil
}

func (s *AuthService) openSession(ctx context.Context, user *model.User) (string, error) {
	token, _, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "sign token", err)
	}
	info := &repository.SessionInfo{
		UserID:   user.ID,
		FullName: user.FullName,
		Email:    user.Email,
	}
	if err := s.sessions.Save(ctx, info, token, s.tokens.Expire()); err != nil {
		return "", err
	}
	return token, nil
}
