package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-key"

func TestGenerateAndParseToken(t *testing.T) {
	user := &User{ID: "user-1", Username: "alex"}

	token, err := GenerateAccessToken(user, testSecret, 60)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Username != "alex" {
		t.Errorf("Username = %q, want alex", claims.Username)
	}
	if claims.ExpiresAt.Before(time.Now()) {
		t.Error("token expired immediately")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	user := &User{ID: "user-1", Username: "alex"}

	token, err := GenerateAccessToken(user, testSecret, 60)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	_, err = ParseToken(token, "different-secret")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
