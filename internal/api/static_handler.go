package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"resumify/internal/api/middleware"
	"resumify/internal/storage"
)

// StaticHandler 提供已上传头像的读取，导出的 PDF 不经过此入口。
type StaticHandler struct {
	store storage.Store
}

// NewStaticHandler 构造静态资源处理器。
func NewStaticHandler(store storage.Store) *StaticHandler {
	return &StaticHandler{store: store}
}

// isValidPictureKey 只接受一层、带图片扩展名的 key。
func isValidPictureKey(key string) bool {
	if key == "" || !utf8.ValidString(key) || strings.Contains(key, "/") {
		return false
	}
	if !storage.ValidKey(key) {
		return false
	}
	dot := strings.LastIndexByte(key, '.')
	if dot < 0 {
		return false
	}
	return allowedPictureExts[strings.ToLower(key[dot+1:])]
}

// Serve 读取并返回图片。
func (h *StaticHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !isValidPictureKey(key) {
		c.Status(http.StatusNotFound)
		return
	}

	obj, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			middleware.LoggerFromContext(c).Error("open picture failed", slog.String("key", key), slog.Any("error", err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNotFound)
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj, map[string]string{
		"Cache-Control":          "private, max-age=86400",
		"X-Content-Type-Options": "nosniff",
	})
}
