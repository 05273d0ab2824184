package session

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"time"
)

// session.Manager interface implementation
var _ Manager = (*Redis)(nil)

// Redis keeps sessions under per-session keys with a TTL matching the
// token lifetime, so tokens survive process restarts.
type Redis struct {
	issuer        string
	secretKey     []byte
	tokenLifetime time.Duration
	users         storage.UserRepository
	rdb           *redis.Client
}

func (svc *Redis) LoggerComponent() string {
	return "Session.Redis"
}

func NewRedis(secretKey string, users storage.UserRepository, rdb *redis.Client, opts ...RedisOption) *Redis {
	s := &Redis{
		secretKey:     []byte(secretKey),
		users:         users,
		rdb:           rdb,
		tokenLifetime: 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type RedisOption func(*Redis)

func WithRedisTokenLifetime(d time.Duration) RedisOption {
	return func(s *Redis) {
		s.tokenLifetime = d
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create method of session.Creator implementation
func (svc *Redis) Create(ctx context.Context, u *model.User) (string, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("user-id", u.ID.String()).Msg("Create")

	id := uuid.New().String()

	now := time.Now()
	exp := now.Add(svc.tokenLifetime)

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			NotBefore: now.Unix(),
			ExpiresAt: exp.Unix(),
			Issuer:    svc.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	strToken, err := token.SignedString(svc.secretKey)
	if err != nil {
		l.Error().Err(err).Send()

		return "", fmt.Errorf("jwt encode: %w", err)
	}

	payload, err := json.Marshal(MemorySession{
		UserID:    u.ID,
		StartedAt: now,
		ExpiresAt: exp,
	})
	if err != nil {
		return "", fmt.Errorf("json encode: %w", err)
	}

	if err := svc.rdb.Set(ctx, sessionKey(id), payload, svc.tokenLifetime).Err(); err != nil {
		l.Error().Err(err).Send()

		return "", fmt.Errorf("redis set: %w", err)
	}

	return strToken, nil
}

// Read method of session.Reader implementation
func (svc *Redis) Read(ctx context.Context, tokenString string) (*model.User, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Msg("Read request")

	c := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		return svc.secretKey, nil
	})

	if err != nil {
		l.Debug().Err(err).Msg("ParseWithClaims failed")

		return nil, ErrInvalidToken
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		l.Debug().Str("token", tokenString).Msg("Invalid token")

		return nil, ErrInvalidToken
	}

	payload, err := svc.rdb.Get(ctx, sessionKey(c.StandardClaims.Id)).Bytes()
	if err != nil {
		l.Debug().Err(err).Msg("Session not found")

		return nil, ErrInvalidToken
	}

	s := MemorySession{}
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, ErrInvalidToken
	}

	u, err := svc.users.Read(ctx, s.UserID)
	if err != nil {
		l.Debug().Err(err).Send()

		return nil, ErrInvalidToken
	}

	return u, nil
}
