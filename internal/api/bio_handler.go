package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resumify/internal/api/middleware"
	"resumify/internal/resume"
	"resumify/internal/sanitize"
)

// BioHandler 为表单中的“Draft a summary”按钮生成简介草稿，不消耗额度。
type BioHandler struct {
	writer    resume.Writer
	sanitizer *sanitize.Sanitizer
	redis     redisRateCounter
	limit     int
	now       func() time.Time
}

// NewBioHandler 构造简介草稿处理器。
func NewBioHandler(app *App) *BioHandler {
	h := &BioHandler{
		writer:    app.Writer,
		sanitizer: app.Sanitizer,
		limit:     app.Config.Auth.BioRateLimitPerHour,
		now:       time.Now,
	}
	if app.Redis != nil {
		h.redis = app.Redis
	}
	return h
}

// Regenerate 返回 {"bio": "..."}。
func (h *BioHandler) Regenerate(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := c.Request.Context()
	userKey := strconv.FormatUint(uint64(user.ID), 10)
	if overHourlyLimit(ctx, h.redis, hourlyKey(h.now(), "bio", userKey), h.limit) {
		jsonError(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var form bioForm
	if err := c.ShouldBind(&form); err != nil {
		jsonError(c, http.StatusBadRequest, "name and profession are required")
		return
	}
	// 清洗后可能变为空串，需再次检查。
	name := h.sanitizer.Sanitize(strings.TrimSpace(form.Name))
	profession := h.sanitizer.Sanitize(strings.TrimSpace(form.Profession))
	if name == "" || profession == "" {
		jsonError(c, http.StatusBadRequest, "name and profession are required")
		return
	}
	skills := resume.SplitSkills(h.sanitizer.Sanitize(form.Skills))

	bio := h.sanitizer.Sanitize(h.writer.Bio(ctx, name, profession, skills))
	c.JSON(http.StatusOK, gin.H{"bio": bio})
}
