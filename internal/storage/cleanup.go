package storage

import (
	"context"
	"log/slog"
)

// Cleanup 尽力删除不再被引用的图片，失败只记录 warn 日志，不影响主流程。
func Cleanup(ctx context.Context, store Store, pictureURL string, logger *slog.Logger) {
	if pictureURL == "" || store == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	key, ok := KeyFromURL(pictureURL)
	if !ok {
		logger.Warn("skip cleanup of foreign picture url", slog.String("url", pictureURL))
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete orphaned picture",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return
	}
	logger.Info("deleted orphaned picture", slog.String("key", key))
}
