package service

import (
	"context"
	"testing"
	"time"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/repository"
	"github.com/AnupamNeon/Chat-app/pkg/jwt"
	"github.com/AnupamNeon/Chat-app/pkg/snowflake"
)

type fakeUserStore struct {
	byEmail map[string]*model.User
	byID    map[int64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]*model.User),
		byID:    make(map[int64]*model.User),
	}
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	if _, ok := f.byEmail[user.Email]; ok {
		return repository.ErrEmailExists
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	return u, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	return u, nil
}

func (f *fakeUserStore) UpdateProfilePic(_ context.Context, id int64, url string) (*model.User, error) {
	u, err := f.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	u.ProfilePic = url
	return u, nil
}

type fakeSessionStore struct {
	byToken map[string]*repository.SessionInfo
	byUser  map[int64]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		byToken: make(map[string]*repository.SessionInfo),
		byUser:  make(map[int64]string),
	}
}

func (f *fakeSessionStore) Save(_ context.Context, info *repository.SessionInfo, token string, _ time.Duration) error {
	if prev, ok := f.byUser[info.UserID]; ok {
		delete(f.byToken, prev)
	}
	f.byToken[token] = info
	f.byUser[info.UserID] = token
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, token string) (*repository.SessionInfo, error) {
	return f.byToken[token], nil
}

func (f *fakeSessionStore) Delete(_ context.Context, userID int64, token string) error {
	delete(f.byToken, token)
	delete(f.byUser, userID)
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserStore, *fakeSessionStore, *fakeBlob) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	blobs := &fakeBlob{}
	tokens := jwt.NewService("test-secret", time.Hour, "chat-app")
	return NewAuthService(users, sessions, tokens, blobs, node, time.Second), users, sessions, blobs
}

func TestSignupValidation(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  SignupRequest
	}{
		{"missing fields", SignupRequest{FullName: "A"}},
		{"bad email", SignupRequest{FullName: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", SignupRequest{FullName: "A", Email: "a@example.com", Password: "123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Signup(ctx, &tc.req)
			if !apperr.IsKind(err, apperr.KindInvalidArgument) {
				t.Fatalf("err = %v, want invalid argument", err)
			}
		})
	}
}

func TestSignupThenLogin(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, &SignupRequest{FullName: "Alice", Email: "Alice@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if token == "" {
		t.Fatal("signup must open a session")
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password must not be stored in the clear")
	}

	got, _, err := svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned user %d, want %d", got.ID, user.ID)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	req := SignupRequest{FullName: "Alice", Email: "a@example.com", Password: "secret1"}
	if _, _, err := svc.Signup(ctx, &req); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	req.Password = "secret1"
	if _, _, err := svc.Signup(ctx, &req); !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, &SignupRequest{FullName: "Alice", Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, err := svc.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "wrong"})
	if !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("wrong password err = %v, want unauthenticated", err)
	}

	// unknown account answers the same way as a wrong password
	_, _, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	if !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("unknown email err = %v, want unauthenticated", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, &SignupRequest{FullName: "Alice", Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if got, err := svc.ValidateSession(ctx, token); err != nil || got != user.ID {
		t.Fatalf("ValidateSession = (%d, %v), want (%d, nil)", got, err, user.ID)
	}

	if err := svc.Logout(ctx, user.ID, token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// the signature still verifies, the session is gone anyway
	if _, err := svc.ValidateSession(ctx, token); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("err after logout = %v, want unauthenticated", err)
	}
}

func TestLoginRevokesPreviousSession(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, first, err := svc.Signup(ctx, &SignupRequest{FullName: "Alice", Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// tokens embed issue time at second precision; a later login needs
	// a distinct token to observe the revocation
	time.Sleep(1100 * time.Millisecond)
	_, second, err := svc.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh token")
	}

	if _, err := svc.ValidateSession(ctx, first); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("old session err = %v, want unauthenticated", err)
	}
	if _, err := svc.ValidateSession(ctx, second); err != nil {
		t.Fatalf("new session err = %v, want nil", err)
	}
}

func TestUpdateProfileUploads(t *testing.T) {
	svc, _, _, blobs := newTestAuthService(t)
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, &SignupRequest{FullName: "Alice", Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{ProfilePic: "data:image/png;base64,AAAA"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.ProfilePic == "" || blobs.uploads != 1 {
		t.Fatalf("profilePic = %q with %d uploads, want stored url and 1 upload", updated.ProfilePic, blobs.uploads)
	}

	if _, err := svc.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{ProfilePic: "  "}); !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("empty pic err = %v, want invalid argument", err)
	}
}
