package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	service := NewService("test-secret-key", time.Hour, "chat-app")

	token, expiresAt, err := service.Generate(12345)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Token should not be empty")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be in the future")
	}

	claims, err := service.Validate(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != 12345 {
		t.Errorf("Expected UserID 12345, got %d", claims.UserID)
	}
	if claims.Issuer != "chat-app" {
		t.Errorf("Expected issuer chat-app, got %s", claims.Issuer)
	}
}

func TestValidate_Invalid(t *testing.T) {
	service := NewService("test-secret-key", time.Hour, "chat-app")

	_, err := service.Validate("invalid-token")
	if err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidate_Expired(t *testing.T) {
	service := NewService("test-secret-key", -time.Hour, "chat-app")

	token, _, err := service.Generate(12345)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = service.Validate(token)
	if err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_WrongSecretKey(t *testing.T) {
	service1 := NewService("secret-key-1", time.Hour, "chat-app")
	service2 := NewService("secret-key-2", time.Hour, "chat-app")

	token, _, err := service1.Generate(12345)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = service2.Validate(token)
	if err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}
