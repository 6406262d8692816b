package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "resumify_flash"
	pendingFlashKey = "pendingFlashes"
	maxFlashes      = 8
)

// Flash 是一次性的页面提示。Category 取 success/info/warning/danger。
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// AddFlash 记录一条提示，下一次渲染页面时展示（可跨一次重定向）。
func AddFlash(c *gin.Context, category, message string) {
	flashes := append(pendingFlashes(c), Flash{Category: category, Message: message})
	if len(flashes) > maxFlashes {
		flashes = flashes[len(flashes)-maxFlashes:]
	}
	c.Set(pendingFlashKey, flashes)

	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// TakeFlashes 返回并清空待展示的提示。
func TakeFlashes(c *gin.Context) []Flash {
	flashes := pendingFlashes(c)
	c.Set(pendingFlashKey, []Flash(nil))
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return flashes
}

// pendingFlashes 合并本次请求新增的提示与 Cookie 中上一次请求留下的提示。
func pendingFlashes(c *gin.Context) []Flash {
	if value, ok := c.Get(pendingFlashKey); ok {
		if flashes, ok := value.([]Flash); ok {
			return flashes
		}
	}
	var flashes []Flash
	if cookie, err := c.Cookie(flashCookieName); err == nil && cookie != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(cookie); err == nil {
			_ = json.Unmarshal(raw, &flashes)
		}
	}
	c.Set(pendingFlashKey, flashes)
	return flashes
}
