package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateAccessToken(id, "a@example.com", "artist", "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != id || claims.Role != "artist" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := ValidateToken(token, "other"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "a@example.com", "artist", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(token, "secret"); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshTokenSubject(t *testing.T) {
	id := uuid.New()
	token, err := GenerateRefreshToken(id, "refresh", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateRefreshToken(token, "refresh")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != id.String() {
		t.Fatalf("subject = %s, want %s", claims.Subject, id)
	}
}
