package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession 表示会话令牌无法通过校验。
var ErrInvalidSession = errors.New("invalid session")

// SessionService 使用 HS256 签发与校验会话令牌（存放在 Cookie 中）。
type SessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionClaims 表示会话令牌中的业务字段，ID（jti）用于登出后吊销。
type SessionClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// NewSessionService 使用签名密钥与有效期构造服务实例。
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue 为用户签发新的会话令牌。
func (s *SessionService) Issue(userID uint) (string, *SessionClaims, error) {
	now := s.now()
	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, claims, nil
}

// Parse 解析并校验会话令牌。
func (s *SessionService) Parse(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.UserID == 0 || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// TTL 暴露会话有效期，用于设置 Cookie 的 Max-Age。
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}
