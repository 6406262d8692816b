package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumify/internal/api/middleware"
	"resumify/internal/auth"
	"resumify/internal/billing"
	"resumify/internal/config"
	"resumify/internal/database"
)

const invalidCredentialsMessage = "Invalid email or password."

// AuthHandler 处理注册、登录与退出。
type AuthHandler struct {
	db          *gorm.DB
	sessions    *auth.SessionService
	revocations middleware.RevocationStore
	redis       redisRateCounter
	locks       loginLockStore
	cfg         config.AuthConfig
	now         func() time.Time
}

// loginLockStore 是登录锁定所需的 Redis 命令子集。
type loginLockStore interface {
	redisRateCounter
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(app *App) *AuthHandler {
	h := &AuthHandler{
		db:          app.DB,
		sessions:    app.Sessions,
		revocations: app.Revocations,
		cfg:         app.Config.Auth,
		now:         time.Now,
	}
	if app.Redis != nil {
		h.redis = app.Redis
		h.locks = app.Redis
	}
	return h
}

// LoginPage 渲染登录表单。
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	renderPage(c, http.StatusOK, "login.html", "Log in", gin.H{
		"Next": middleware.SafeRedirectTarget(c.Query("next"), ""),
	})
}

// Login 校验邮箱与口令，成功后写入会话 Cookie。
func (h *AuthHandler) Login(c *gin.Context) {
	var form loginForm
	bindErr := c.ShouldBind(&form)
	email := strings.ToLower(strings.TrimSpace(form.Email))
	password := form.Password
	next := middleware.SafeRedirectTarget(form.Next, "")

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("email", email))

	fail := func(status int, message string) {
		middleware.AddFlash(c, "danger", message)
		renderPage(c, status, "login.html", "Log in", gin.H{"Email": email, "Next": next})
	}

	if bindErr != nil {
		logger.Info("login form rejected", slog.Any("error", bindErr))
		fail(http.StatusBadRequest, loginFormMessage(bindErr))
		return
	}

	// 速率限制：每 IP+邮箱 每小时 N 次
	if overHourlyLimit(ctx, h.redis, hourlyKey(h.now(), "login", c.ClientIP(), email), h.cfg.LoginRateLimitPerHour) {
		logger.Info("login rate limited")
		fail(http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	if h.locked(ctx, email) {
		logger.Info("login refused: account locked")
		fail(http.StatusTooManyRequests, "This account is temporarily locked. Please try again later.")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			h.incrementLoginFail(ctx, email)
			fail(http.StatusUnauthorized, invalidCredentialsMessage)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.incrementLoginFail(ctx, email)
		fail(http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	// 登录成功：清理失败计数
	if h.locks != nil {
		_ = h.locks.Del(ctx, loginFailKey(email)).Err()
	}

	if err := h.startSession(c, &user); err != nil {
		logger.Error("issue session failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)))
	redirectWithFlash(c, middleware.SafeRedirectTarget(next, "/"), "success", "Logged in successfully.")
}

// RegisterPage 渲染注册表单。
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	renderPage(c, http.StatusOK, "register.html", "Register", gin.H{"Form": auth.Registration{}})
}

// Register 创建新用户并直接登录，初始赠送每日免费额度。
func (h *AuthHandler) Register(c *gin.Context) {
	var form auth.Registration
	bindErr := c.ShouldBind(&form)
	form.Normalize()

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("email", form.Email))

	reject := func(status int, errs []string) {
		form.Password, form.ConfirmPassword = "", ""
		renderPage(c, status, "register.html", "Register", gin.H{"Form": form, "Errors": errs})
	}

	if bindErr != nil {
		reject(http.StatusBadRequest, auth.ValidationMessages(bindErr))
		return
	}

	var existing database.User
	if err := h.db.WithContext(ctx).Where("email = ?", form.Email).First(&existing).Error; err == nil {
		logger.Info("register conflict: email already exists")
		reject(http.StatusConflict, []string{"An account with this email already exists."})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register lookup failed", slog.Any("error", err))
		reject(http.StatusInternalServerError, []string{"Something went wrong. Please try again."})
		return
	}

	hashed, err := auth.HashPassword(form.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		reject(http.StatusInternalServerError, []string{"Something went wrong. Please try again."})
		return
	}

	now := h.now()
	user := database.User{
		Username:       form.Username(),
		FirstName:      form.FirstName,
		LastName:       form.LastName,
		Email:          form.Email,
		PasswordHash:   hashed,
		Tokens:         billing.FreeDailyTokens,
		Plan:           string(billing.PlanFree),
		LastTokenReset: &now,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		reject(http.StatusInternalServerError, []string{"Something went wrong. Please try again."})
		return
	}

	if err := h.startSession(c, &user); err != nil {
		logger.Error("issue session failed", slog.Any("error", err))
		redirectWithFlash(c, "/login", "info", "Your account was created. Please log in.")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	redirectWithFlash(c, "/", "success", "Registration successful! Welcome to Resumify.")
}

// Logout 吊销当前会话并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := middleware.SessionClaims(c); ok && h.revocations != nil {
		ttl := h.sessions.TTL()
		if claims.ExpiresAt != nil {
			ttl = claims.ExpiresAt.Time.Sub(h.now())
		}
		if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
			middleware.LoggerFromContext(c).Error("revoke session failed", slog.Any("error", err))
		}
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	redirectWithFlash(c, "/", "info", "You have been logged out.")
}

func (h *AuthHandler) startSession(c *gin.Context, user *database.User) error {
	token, claims, err := h.sessions.Issue(user.ID)
	if err != nil {
		return err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		Expires:  claims.ExpiresAt.Time,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	middleware.SetCurrentUser(c, user)
	return nil
}

func (h *AuthHandler) locked(ctx context.Context, email string) bool {
	if h.locks == nil {
		return false
	}
	ttl, err := h.locks.TTL(ctx, loginLockKey(email)).Result()
	return err == nil && ttl > 0
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) {
	if h.locks == nil || h.cfg.LoginLockThreshold <= 0 {
		return
	}
	count, err := incrWithTTL(ctx, h.locks, loginFailKey(email), h.cfg.LoginLockTTL)
	if err != nil {
		return
	}
	if count >= int64(h.cfg.LoginLockThreshold) {
		_ = h.locks.Set(ctx, loginLockKey(email), "1", h.cfg.LoginLockTTL).Err()
	}
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
