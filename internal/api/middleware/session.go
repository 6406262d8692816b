package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumify/internal/auth"
	"resumify/internal/database"
)

// SessionCookieName 是保存会话令牌的 Cookie 名。
const SessionCookieName = "resumify_session"

const (
	currentUserKey   = "currentUser"
	sessionClaimsKey = "sessionClaims"
	revokedKeyPrefix = "auth:session:revoked:"
)

// RevocationStore 记录已登出的会话 jti。
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationStore 使用带过期时间的 Redis key 作为黑名单。
type RedisRevocationStore struct {
	client redis.UniversalClient
}

// NewRedisRevocationStore 构造 RedisRevocationStore。
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke 实现 RevocationStore。
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, revokedKeyPrefix+jti, "revoked", ttl).Err()
}

// IsRevoked 实现 RevocationStore。
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, err
}

// SessionResolver 从 Cookie 中解析当前用户。
type SessionResolver struct {
	Sessions *auth.SessionService
	Revoked  RevocationStore
	DB       *gorm.DB
}

// Resolve 返回当前请求的用户与会话声明；未登录时返回 nil, nil, nil。
func (r *SessionResolver) Resolve(c *gin.Context) (*database.User, *auth.SessionClaims, error) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || token == "" {
		return nil, nil, nil
	}
	claims, err := r.Sessions.Parse(token)
	if err != nil {
		return nil, nil, nil
	}
	ctx := c.Request.Context()
	if r.Revoked != nil {
		revoked, err := r.Revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return nil, nil, nil
		}
	}
	var user database.User
	if err := r.DB.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load session user: %w", err)
	}
	return &user, claims, nil
}

// Middleware 解析会话并把用户放入上下文；解析失败按匿名处理。
func (r *SessionResolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, claims, err := r.Resolve(c)
		if err != nil {
			LoggerFromContext(c).Warn("resolve session failed", slog.Any("error", err))
		}
		if user != nil {
			c.Set(currentUserKey, user)
			c.Set(sessionClaimsKey, claims)
		}
		c.Next()
	}
}

// RequireLogin 未登录时重定向到登录页。
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		AddFlash(c, "info", "Please log in to access this page.")
		target := "/login"
		if c.Request.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		}
		c.Redirect(http.StatusSeeOther, target)
		c.Abort()
	}
}

// CurrentUser 返回上下文中的当前用户。
func CurrentUser(c *gin.Context) (*database.User, bool) {
	if value, ok := c.Get(currentUserKey); ok {
		if user, ok := value.(*database.User); ok && user != nil {
			return user, true
		}
	}
	return nil, false
}

// SetCurrentUser 在登录/注册成功后更新上下文中的当前用户。
func SetCurrentUser(c *gin.Context, user *database.User) {
	c.Set(currentUserKey, user)
}

// SessionClaims 返回当前会话的声明。
func SessionClaims(c *gin.Context) (*auth.SessionClaims, bool) {
	if value, ok := c.Get(sessionClaimsKey); ok {
		if claims, ok := value.(*auth.SessionClaims); ok && claims != nil {
			return claims, true
		}
	}
	return nil, false
}

// SafeRedirectTarget 只接受站内相对路径，防止开放重定向。
// 浏览器会忽略路径中的制表符与换行并把 \ 当作 /，因此原文与解码后的路径都要检查。
func SafeRedirectTarget(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || unsafeRedirectPath(next) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || unsafeRedirectPath(u.Path) {
		return fallback
	}
	return next
}

func unsafeRedirectPath(p string) bool {
	return strings.HasPrefix(p, "//") || strings.Contains(p, `\`) || strings.IndexFunc(p, unicode.IsControl) >= 0
}
