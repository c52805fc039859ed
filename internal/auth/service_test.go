package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, testJWTConfig())
}

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func TestSignup_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupInput{Username: "ab", Password: "password123"}); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, _, err := svc.Signup(ctx, SignupInput{Username: " ab ", Password: "password123"}); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestSignup_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)

	for _, pw := range []string{"12345", strings.Repeat("x", 73)} {
		if _, _, err := svc.Signup(context.Background(), SignupInput{Username: "abc", Password: pw}); !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("len %d: expected ErrInvalidPassword, got %v", len(pw), err)
		}
	}
}

func TestSignup_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, user, err := svc.Signup(ctx, SignupInput{Username: " alice ", Password: "password123", FullName: "Alice A"})
	if err != nil {
		t.Fatalf("expected signup success, got %v", err)
	}
	if token == "" || user.ID == "" || user.Username != "alice" || user.FullName != "Alice A" {
		t.Fatalf("unexpected signup result: token=%q user=%+v", token, user)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// Should collide because the stored username is trimmed.
	if _, _, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "password123"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	_, created, err := svc.Signup(ctx, SignupInput{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "bob", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	token, user, err := svc.Login(ctx, "bob", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" || user.ID != created.ID {
		t.Fatalf("unexpected login result: token=%q user=%+v", token, user)
	}

	me, err := svc.Me(ctx, user.ID)
	if err != nil || me.Username != "bob" {
		t.Fatalf("Me: user=%+v err=%v", me, err)
	}
}

func TestValidateToken_RejectsForeignAudienceAndSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "u1", "alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := testJWTConfig()
	other.Audience = "elsewhere"
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}

	other = testJWTConfig()
	other.Secret = []byte("another-secret")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	expired := testJWTConfig()
	expired.TTL = -time.Minute
	stale, err := GenerateToken(expired, "u1", "alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken(cfg, stale); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
