// Package auth issues and verifies sessions. Passwords are bcrypt hashes in
// Postgres; access tokens are HS256 JWTs whose id must still be registered in
// Redis, so signing out revokes a token before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kingk/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	DefaultSessionTTL = 60 * time.Minute
	linkCodeTTL       = 10 * time.Minute
	sessionKeyPrefix  = "kingk:session:"
	linkKeyPrefix     = "kingk:link:"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidLinkCode    = errors.New("invalid or expired link code")
)

// UserStore returns nil, nil when a user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	tracer trace.Tracer
	users  UserStore
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewService(tracer trace.Tracer, users UserStore, rdb *redis.Client, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		tracer: tracer,
		users:  users,
		rdb:    rdb,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.sign-up")
	defer span.End()

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user.ID, user.Email)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.sign-in")
	defer span.End()

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID, user.Email)
}

// Verify checks the signature, expiry and that the token was not revoked.
func (s *Service) Verify(ctx context.Context, token string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.verify")
	defer span.End()

	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	userID, err := s.rdb.Get(ctx, sessionKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if userID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return &domain.Session{
		AccessToken: token,
		UserID:      claims.Subject,
		Email:       claims.Email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "auth-service.sign-out")
	defer span.End()

	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, sessionKeyPrefix+claims.ID).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Refresh revokes the presented token and issues a new one for the same user.
func (s *Service) Refresh(ctx context.Context, token string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.refresh")
	defer span.End()

	current, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.SignOut(ctx, token); err != nil {
		return nil, err
	}
	return s.issue(ctx, current.UserID, current.Email)
}

func (s *Service) issue(ctx context.Context, userID, email string) (*domain.Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+claims.ID, userID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &domain.Session{AccessToken: signed, UserID: userID, Email: email, ExpiresAt: expires}, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueLinkCode creates a short single-use code that binds a Telegram chat to
// the user when sent to the bot.
func (s *Service) IssueLinkCode(ctx context.Context, userID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.issue-link-code")
	defer span.End()

	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	if err := s.rdb.Set(ctx, linkKeyPrefix+code, userID, linkCodeTTL).Err(); err != nil {
		return "", fmt.Errorf("store link code: %w", err)
	}
	return code, nil
}

func (s *Service) RedeemLinkCode(ctx context.Context, code string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.redeem-link-code")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrInvalidLinkCode
	}
	userID, err := s.rdb.GetDel(ctx, linkKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidLinkCode
	}
	if err != nil {
		return "", fmt.Errorf("redeem link code: %w", err)
	}
	return userID, nil
}

// User returns the stored account for a verified session.
func (s *Service) User(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth-service.user")
	defer span.End()

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}
