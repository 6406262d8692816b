package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"resumify/internal/config"
)

// ErrNotFound 表示对象不存在。
var ErrNotFound = errors.New("object not found")

// URLPrefix 是上传图片对外暴露的路径前缀。
const URLPrefix = "/static/uploads/"

// Object 是一个可读取的存储对象，调用方负责 Close。
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store 抽象了图片与 PDF 的存放位置（本地磁盘或 MinIO）。
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Presigner 由支持限时直链的后端实现。
type Presigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New 根据 uploads.backend 选择存储后端。
func New(cfg *config.Config) (Store, error) {
	switch cfg.Uploads.Backend {
	case "", "local":
		return NewLocal(cfg.Uploads.Dir)
	case "minio":
		return NewClient(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown uploads backend %q", cfg.Uploads.Backend)
	}
}

// URLForKey 返回对象在站内的访问路径。
func URLForKey(key string) string {
	return URLPrefix + key
}

// KeyFromURL 从站内访问路径还原对象 key；外部链接返回 false。
func KeyFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, URLPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(u, URLPrefix)
	if !ValidKey(key) {
		return "", false
	}
	return key, true
}

// ValidKey 只允许由安全字符组成、不含路径穿越的相对 key。
func ValidKey(key string) bool {
	if key == "" || len(key) > 512 || strings.HasPrefix(key, "/") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-', r == '/':
		default:
			return false
		}
	}
	return true
}
