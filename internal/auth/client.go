package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"kingk/internal/domain"

	"github.com/redis/go-redis/v9"
)

const deviceKeyPrefix = "kingk:device:"

// Backend is the server side of authentication. *Service implements it.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*domain.Session, error)
	Verify(ctx context.Context, token string) (*domain.Session, error)
}

// TokenStore remembers the access token of one device between runs.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// RedisTokenStore keys the remembered token by a device id, such as the
// fingerprint of an SSH public key.
type RedisTokenStore struct {
	rdb *redis.Client
	key string
}

func NewRedisTokenStore(rdb *redis.Client, deviceID string) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, key: deviceKeyPrefix + deviceID}
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (s *RedisTokenStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.key, token, ttl).Err()
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// Client is one UI session's view of authentication. It caches the current
// session and broadcasts auth events to subscribers in emission order.
type Client struct {
	backend Backend
	tokens  TokenStore

	mu      sync.Mutex
	session *domain.Session

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(domain.AuthEvent)

	emitMu sync.Mutex
}

func NewClient(backend Backend, tokens TokenStore) *Client {
	return &Client{
		backend: backend,
		tokens:  tokens,
		subs:    make(map[int]func(domain.AuthEvent)),
	}
}

// Bootstrap restores a remembered session. It emits nothing; a missing or
// revoked token just yields no session.
func (c *Client) Bootstrap(ctx context.Context) (*domain.Session, error) {
	if c.tokens == nil {
		return nil, nil
	}
	token, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load remembered token: %w", err)
	}
	if token == "" {
		return nil, nil
	}
	session, err := c.backend.Verify(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		if err := c.tokens.Clear(ctx); err != nil {
			log.Printf("Warning: failed to clear stale token: %v", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	return copySession(session), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := c.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.establish(ctx, session, domain.AuthSignedIn)
	return copySession(session), nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := c.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.establish(ctx, session, domain.AuthSignedIn)
	return copySession(session), nil
}

// SignOut always ends the local session, even if revocation fails remotely.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	var err error
	if session != nil {
		err = c.backend.SignOut(ctx, session.AccessToken)
	}
	if c.tokens != nil {
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			log.Printf("Warning: failed to clear remembered token: %v", clearErr)
		}
	}
	c.emit(domain.AuthEvent{Kind: domain.AuthSignedOut})
	return err
}

// Refresh rotates the access token. A rejected token signs the client out.
func (c *Client) Refresh(ctx context.Context) error {
	current := c.Session()
	if current == nil {
		return nil
	}
	session, err := c.backend.Refresh(ctx, current.AccessToken)
	if errors.Is(err, ErrInvalidToken) {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		if c.tokens != nil {
			_ = c.tokens.Clear(ctx)
		}
		c.emit(domain.AuthEvent{Kind: domain.AuthSignedOut})
		return err
	}
	if err != nil {
		return err
	}
	c.establish(ctx, session, domain.AuthTokenRefreshed)
	return nil
}

// StartAutoRefresh refreshes the token every interval until ctx is done.
func (c *Client) StartAutoRefresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("token refresh failed: %v", err)
				}
			}
		}
	}()
}

func (c *Client) Session() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.session)
}

func (c *Client) establish(ctx context.Context, session *domain.Session, kind domain.AuthEventKind) {
	c.setSession(session)
	if c.tokens != nil {
		ttl := time.Until(session.ExpiresAt)
		if err := c.tokens.Save(ctx, session.AccessToken, ttl); err != nil {
			log.Printf("Warning: failed to remember token: %v", err)
		}
	}
	c.emit(domain.AuthEvent{Kind: kind, Session: copySession(session)})
}

func (c *Client) setSession(session *domain.Session) {
	c.mu.Lock()
	c.session = copySession(session)
	c.mu.Unlock()
}

// Subscription is released with Unsubscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func (c *Client) Subscribe(fn func(domain.AuthEvent)) *Subscription {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return &Subscription{cancel: func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}}
}

func (c *Client) SubscriberCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

func (c *Client) emit(ev domain.AuthEvent) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.subMu.Lock()
	fns := make([]func(domain.AuthEvent), 0, len(c.subs))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
