package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"resumify/internal/errcode"
	"resumify/internal/metrics"
	"resumify/internal/pdf"
	"resumify/internal/resume"
	"resumify/internal/storage"
	"resumify/internal/tasks"
	"resumify/internal/templates"
)

// 导出状态，写入 resumes.pdf_status。
const (
	ExportPending = "pending"
	ExportReady   = "ready"
	ExportFailed  = "failed"
)

// maxInlinePictureBytes 限制内联到 PDF 的头像大小。
const maxInlinePictureBytes = 5 << 20

// ExportTaskHandler 负责消费简历导出任务：渲染 HTML、生成 PDF、保存并通知。
type ExportTaskHandler struct {
	resumes   *resume.Service
	store     storage.Store
	renderer  pdf.Renderer
	notifier  Notifier
	templates *template.Template
	logger    *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	resumes *resume.Service,
	store storage.Store,
	renderer pdf.Renderer,
	notifier Notifier,
	tmpl *template.Template,
	logger *slog.Logger,
) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTaskHandler{
		resumes:   resumes,
		store:     store,
		renderer:  renderer,
		notifier:  notifier,
		templates: tmpl,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.ParseResumeExportPayload(t)
	if err != nil {
		h.logger.Error("decode task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("resume_id", uint64(payload.ResumeID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("starting resume export")

	rec, err := h.resumes.Get(ctx, payload.UserID, payload.ResumeID)
	if err != nil {
		if errors.Is(err, resume.ErrNotFound) {
			log.Warn("resume not found, skipping task")
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}

	code := errcode.SystemError
	defer func() {
		if metrics.TaskOutcome(ctx, retErr) != metrics.TaskDropped {
			return
		}
		if err := h.resumes.MarkExport(ctx, rec.ID, ExportFailed, ""); err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}
		h.notify(ctx, log, rec.UserID, ExportNotifyMessage{
			Status:        "error",
			ResumeID:      rec.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     code,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		})
	}()

	view, err := resume.NewView(rec)
	if err != nil {
		log.Error("decode resume failed", slog.Any("error", err))
		return err
	}

	picture, missing := h.inlinePicture(ctx, log, view.ProfilePicURL)

	var html bytes.Buffer
	if err := templates.RenderResume(h.templates, &html, rec.Template, templates.Document{
		Resume:  view,
		Picture: picture,
	}); err != nil {
		code = errcode.RenderFailed
		log.Error("render resume html failed", slog.Any("error", err))
		return err
	}

	data, err := h.renderer.Render(ctx, html.String())
	if err != nil {
		code = errcode.RenderFailed
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	key := fmt.Sprintf("exports/%d-%s.pdf", rec.ID, uuid.NewString())
	if err := h.store.Save(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		code = errcode.StorageFailed
		log.Error("store pdf failed", slog.Any("error", err))
		return err
	}
	if err := h.resumes.MarkExport(ctx, rec.ID, ExportReady, key); err != nil {
		log.Error("update resume failed", slog.Any("error", err))
		return err
	}
	if rec.PdfKey != "" && rec.PdfKey != key {
		if err := h.store.Delete(ctx, rec.PdfKey); err != nil {
			log.Warn("delete previous export failed", slog.String("key", rec.PdfKey), slog.Any("error", err))
		}
	}

	msg := ExportNotifyMessage{
		Status:        "completed",
		ResumeID:      rec.ID,
		CorrelationID: payload.CorrelationID,
		DownloadURL:   fmt.Sprintf("/resume/%d/pdf", rec.ID),
		ErrorCode:     errcode.OK,
	}
	if len(missing) > 0 {
		msg.ErrorCode = errcode.ResourceMissing
		msg.ErrorMessage = "profile picture unavailable, exported without it"
		msg.MissingKeys = missing
	}
	h.notify(ctx, log, rec.UserID, msg)

	log.Info("resume export completed", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

// inlinePicture 把站内头像转成 data URI，使 PDF 不依赖外部请求。缺失的 key 会被返回。
func (h *ExportTaskHandler) inlinePicture(ctx context.Context, log *slog.Logger, pictureURL string) (template.URL, []string) {
	if pictureURL == "" {
		return "", nil
	}
	key, ok := storage.KeyFromURL(pictureURL)
	if !ok {
		return "", []string{pictureURL}
	}
	obj, err := h.store.Open(ctx, key)
	if err != nil {
		log.Warn("open profile picture failed", slog.String("key", key), slog.Any("error", err))
		return "", []string{key}
	}
	defer obj.Close()

	raw, err := io.ReadAll(io.LimitReader(obj, maxInlinePictureBytes+1))
	if err != nil || len(raw) > maxInlinePictureBytes {
		log.Warn("read profile picture failed", slog.String("key", key), slog.Any("error", err))
		return "", []string{key}
	}
	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", []string{key}
	}
	return template.URL("data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(raw)), nil
}

func (h *ExportTaskHandler) notify(ctx context.Context, log *slog.Logger, userID uint, msg ExportNotifyMessage) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, userID, msg); err != nil {
		log.Error("publish export notification failed", slog.Any("error", err))
	}
}
