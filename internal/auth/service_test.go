package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"kingk/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu    sync.Mutex
	next  int
	users map[string]*domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*domain.User)}
}

func (m *memoryUsers) CreateUser(_ context.Context, email, hash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, ErrUserExists
	}
	m.next++
	u := &domain.User{ID: "user-" + strconv.Itoa(m.next), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[email] = u
	return u, nil
}

func (m *memoryUsers) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email], nil
}

func (m *memoryUsers) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), newMemoryUsers(), rdb, "test-secret", time.Hour)
	svc.cost = bcrypt.MinCost
	return svc, mr, rdb
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, " Trader@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if session.Email != "trader@example.com" || session.AccessToken == "" || session.UserID == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	if _, err := svc.SignUp(ctx, "trader@example.com", "another1"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	again, err := svc.SignIn(ctx, "trader@example.com", "secret1")
	if err != nil || again.UserID != session.UserID {
		t.Fatalf("sign in: %v %+v", err, again)
	}
	if _, err := svc.SignIn(ctx, "trader@example.com", "wrong!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.SignUp(context.Background(), "a@b.c", "12345"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.SignUp(context.Background(), "no-at-sign", "123456"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestVerifySignOutAndRefresh(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	session, _ := svc.SignUp(ctx, "t@example.com", "secret1")

	verified, err := svc.Verify(ctx, session.AccessToken)
	if err != nil || verified.UserID != session.UserID {
		t.Fatalf("verify: %v %+v", err, verified)
	}

	refreshed, err := svc.Refresh(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token should be revoked after refresh, got %v", err)
	}
	if _, err := svc.Verify(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("refreshed token should verify: %v", err)
	}

	if err := svc.SignOut(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := svc.Verify(ctx, refreshed.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after sign out, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndExpiredTokens(t *testing.T) {
	svc, mr, _ := newTestService(t)
	ctx := context.Background()
	session, _ := svc.SignUp(ctx, "t@example.com", "secret1")

	if _, err := svc.Verify(ctx, session.AccessToken+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}

	other := NewService(svc.tracer, svc.users, svc.rdb, "other-secret", time.Hour)
	if _, err := other.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign secret to fail, got %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := svc.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked session after ttl, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.parse(session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired jwt to fail, got %v", err)
	}
}

func TestLinkCodesAreSingleUse(t *testing.T) {
	svc, mr, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.IssueLinkCode(ctx, "user-1")
	if err != nil || len(code) != 8 {
		t.Fatalf("issue: %q %v", code, err)
	}
	userID, err := svc.RedeemLinkCode(ctx, " "+code+" ")
	if err != nil || userID != "user-1" {
		t.Fatalf("redeem: %q %v", userID, err)
	}
	if _, err := svc.RedeemLinkCode(ctx, code); !errors.Is(err, ErrInvalidLinkCode) {
		t.Fatalf("expected single use, got %v", err)
	}

	expiring, _ := svc.IssueLinkCode(ctx, "user-2")
	mr.FastForward(linkCodeTTL + time.Second)
	if _, err := svc.RedeemLinkCode(ctx, expiring); !errors.Is(err, ErrInvalidLinkCode) {
		t.Fatalf("expected expired code, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	svc, _, _ := newTestService(t)
	session, _ := svc.SignUp(context.Background(), "t@example.com", "secret1")
	user, err := svc.User(context.Background(), session.UserID)
	if err != nil || user.Email != "t@example.com" {
		t.Fatalf("unexpected user %+v %v", user, err)
	}
	if _, err := svc.User(context.Background(), "missing"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
