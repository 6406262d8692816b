package api

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"resumify/internal/api/middleware"
	"resumify/internal/billing"
	"resumify/internal/database"
	"resumify/internal/resume"
	"resumify/internal/sanitize"
	"resumify/internal/storage"
	"resumify/internal/tasks"
	"resumify/internal/templates"
	"resumify/internal/worker"
)

const (
	notFoundMessage      = "Resume not found or access denied."
	genericFailure       = "Something went wrong. Please try again later."
	pdfPresignTTL        = 10 * time.Minute
	exportTaskMaxRetry   = 3
	exportTaskTimeout    = 2 * time.Minute
	exportUniqueWindow   = 30 * time.Second
	defaultMultipartSize = 8 << 20
)

// ResumeHandler 处理简历的生成、查看、编辑、删除与 PDF 导出。
type ResumeHandler struct {
	generator *resume.Generator
	resumes   *resume.Service
	store     storage.Store
	enqueuer  Enqueuer
	tmpl      *template.Template
	sanitizer *sanitize.Sanitizer
	uploader  *pictureUploader
	maxRetry  int
}

// NewResumeHandler 构造简历处理器。
func NewResumeHandler(app *App) *ResumeHandler {
	maxBytes := app.Config.Uploads.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	maxRetry := app.Config.Worker.MaxRetry
	if maxRetry <= 0 {
		maxRetry = exportTaskMaxRetry
	}
	return &ResumeHandler{
		maxRetry:  maxRetry,
		generator: app.Generator,
		resumes:   app.Resumes,
		store:     app.Store,
		enqueuer:  app.Enqueuer,
		tmpl:      app.Templates,
		sanitizer: app.Sanitizer,
		uploader: &pictureUploader{
			store:    app.Store,
			scanner:  app.Scanner,
			maxBytes: maxBytes,
			now:      time.Now,
		},
	}
}

func formData(view resume.View, action, submit string) gin.H {
	selected := view.Template
	if selected == "" {
		selected = templates.DefaultLayout
	}
	return gin.H{
		"Resume":   view,
		"Action":   action,
		"Submit":   submit,
		"Layouts":  templates.Catalogue(),
		"Selected": selected,
	}
}

// Start 渲染新建简历表单。
func (h *ResumeHandler) Start(c *gin.Context) {
	view := resume.View{Template: templates.DefaultLayout}
	if layout := c.Query("template"); layout != "" {
		if _, ok := templates.Lookup(layout); ok {
			view.Template = layout
		}
	}
	renderPage(c, http.StatusOK, "start.html", "New resume", formData(view, "/generate", "Generate resume"))
}

// Generate 校验表单、检查额度、保存头像并生成简历。
func (h *ResumeHandler) Generate(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(user.ID)))

	values, err := postedValues(c)
	if err != nil {
		log.Info("parse generate form failed", slog.Any("error", err))
		redirectWithFlash(c, "/start", "danger", "The form could not be read. Please try again.")
		return
	}

	var header resumeHeader
	if err := c.ShouldBind(&header); err != nil {
		redirectWithFlash(c, "/start", "danger", draftErrorMessage(resume.ErrMissingField))
		return
	}
	draft, err := resume.DraftFromForm(values, h.sanitizer)
	if err != nil {
		redirectWithFlash(c, "/start", "danger", draftErrorMessage(err))
		return
	}

	if _, err := h.generator.Prepare(ctx, user.ID, draft.Template); err != nil {
		h.refuseGeneration(c, log, err)
		return
	}

	picture, err := h.uploader.save(c)
	if err != nil {
		// 保留已填写的内容，只需重新选择图片。
		middleware.AddFlash(c, "danger", pictureErrorMessage(log, err))
		renderPage(c, http.StatusBadRequest, "start.html", "New resume", formData(resume.DraftView(draft), "/generate", "Generate resume"))
		return
	}

	enhance := c.PostForm("enhance_descriptions") != ""
	rec, err := h.generator.Generate(ctx, user.ID, draft, picture, enhance)
	if err != nil {
		// 新上传的图片未被任何简历引用。
		if picture != nil {
			storage.Cleanup(ctx, h.store, *picture, log)
		}
		h.refuseGeneration(c, log, err)
		return
	}

	log.Info("resume generated", slog.Uint64("resume_id", uint64(rec.ID)), slog.String("template", rec.Template))
	redirectWithFlash(c, resumePath(rec.ID), "success", "Resume generated successfully!")
}

func (h *ResumeHandler) refuseGeneration(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, resume.ErrPremiumTemplate):
		redirectWithFlash(c, "/pricing", "danger", "This template is only available for Pro or Ultimate users.")
	case errors.Is(err, resume.ErrNoTokens):
		redirectWithFlash(c, "/pricing", "danger", "You're out of tokens. Please buy more or wait for your daily reset.")
	case errors.Is(err, resume.ErrMissingField), errors.Is(err, resume.ErrUnknownTemplate):
		redirectWithFlash(c, "/start", "danger", draftErrorMessage(err))
	default:
		log.Error("generate resume failed", slog.Any("error", err))
		redirectWithFlash(c, "/start", "danger", "Failed to generate resume. Please try again.")
	}
}

// List 渲染当前用户的简历列表（最新在前）。
func (h *ResumeHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	resumes, err := h.resumes.List(c.Request.Context(), user.ID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list resumes failed", slog.Any("error", err))
		renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
		return
	}
	renderPage(c, http.StatusOK, "my_resumes.html", "My resumes", gin.H{"Resumes": resumes})
}

// View 以所选版式渲染简历。
func (h *ResumeHandler) View(c *gin.Context) {
	rec, ok := h.loadOwned(c)
	if !ok {
		return
	}
	view, err := resume.NewView(rec)
	if err != nil {
		middleware.LoggerFromContext(c).Error("decode resume failed", slog.Uint64("resume_id", uint64(rec.ID)), slog.Any("error", err))
		renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
		return
	}

	doc := templates.Document{
		Resume:      view,
		Interactive: true,
		Flashes:     middleware.TakeFlashes(c),
	}
	if _, ok := storage.KeyFromURL(view.ProfilePicURL); ok {
		doc.Picture = template.URL(view.ProfilePicURL)
	}
	if rec.PdfStatus == worker.ExportReady && rec.PdfKey != "" {
		doc.PDFHref = resumePath(rec.ID) + "/pdf"
	}

	var buf bytes.Buffer
	if err := templates.RenderResume(h.tmpl, &buf, rec.Template, doc); err != nil {
		middleware.LoggerFromContext(c).Error("render resume failed", slog.Uint64("resume_id", uint64(rec.ID)), slog.Any("error", err))
		renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// EditPage 渲染编辑表单；?duplicate=1 时先复制再跳转到副本的编辑页。
func (h *ResumeHandler) EditPage(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := resumeID(c)
	if !ok {
		notFoundPage(c)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("resume_id", uint64(id)))

	if c.Query("duplicate") == "1" {
		clone, err := h.resumes.Duplicate(ctx, user.ID, id)
		if err != nil {
			if errors.Is(err, resume.ErrNotFound) {
				redirectWithFlash(c, "/my-resumes", "danger", notFoundMessage)
				return
			}
			log.Error("duplicate resume failed", slog.Any("error", err))
			redirectWithFlash(c, "/my-resumes", "danger", genericFailure)
			return
		}
		redirectWithFlash(c, resumePath(clone.ID)+"/edit", "info", "Resume duplicated. You can now edit it.")
		return
	}

	rec, ok := h.loadOwned(c)
	if !ok {
		return
	}
	view, err := resume.NewView(rec)
	if err != nil {
		log.Error("decode resume failed", slog.Any("error", err))
		redirectWithFlash(c, "/my-resumes", "danger", genericFailure)
		return
	}
	renderPage(c, http.StatusOK, "edit_resume.html", "Edit resume", formData(view, resumePath(rec.ID)+"/edit", "Save changes"))
}

// Edit 保存编辑结果；子列表整体替换，新头像替换旧头像。
func (h *ResumeHandler) Edit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := resumeID(c)
	if !ok {
		notFoundPage(c)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("resume_id", uint64(id)))
	editPath := resumePath(id) + "/edit"

	values, err := postedValues(c)
	if err != nil {
		log.Info("parse edit form failed", slog.Any("error", err))
		redirectWithFlash(c, editPath, "danger", "The form could not be read. Please try again.")
		return
	}
	var header resumeHeader
	if err := c.ShouldBind(&header); err != nil {
		redirectWithFlash(c, editPath, "danger", draftErrorMessage(resume.ErrMissingField))
		return
	}
	draft, err := resume.DraftFromForm(values, h.sanitizer)
	if err != nil {
		redirectWithFlash(c, editPath, "danger", draftErrorMessage(err))
		return
	}
	if !billing.CanUseTemplate(user, draft.Template) {
		redirectWithFlash(c, editPath, "danger", "This template is only available for Pro or Ultimate users.")
		return
	}

	picture, err := h.uploader.save(c)
	if err != nil {
		middleware.AddFlash(c, "danger", pictureErrorMessage(log, err))
		renderPage(c, http.StatusBadRequest, "edit_resume.html", "Edit resume", formData(resume.DraftView(draft), editPath, "Save changes"))
		return
	}

	_, orphaned, err := h.resumes.Update(ctx, user.ID, id, draft, picture)
	if err != nil {
		if picture != nil {
			storage.Cleanup(ctx, h.store, *picture, log)
		}
		switch {
		case errors.Is(err, resume.ErrNotFound):
			redirectWithFlash(c, "/my-resumes", "danger", notFoundMessage)
		default:
			log.Error("update resume failed", slog.Any("error", err))
			redirectWithFlash(c, "/my-resumes", "danger", "Failed to update resume. Please try again.")
		}
		return
	}
	storage.Cleanup(ctx, h.store, orphaned.Picture, log)
	if orphaned.Export != "" {
		if err := h.store.Delete(ctx, orphaned.Export); err != nil {
			log.Warn("delete stale export failed", slog.String("key", orphaned.Export), slog.Any("error", err))
		}
	}

	redirectWithFlash(c, "/my-resumes", "success", "Resume updated successfully!")
}

// Delete 删除简历并尽力清理不再被引用的头像与导出文件。
func (h *ResumeHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := resumeID(c)
	if !ok {
		redirectWithFlash(c, "/my-resumes", "danger", notFoundMessage)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("resume_id", uint64(id)))

	rec, err := h.resumes.Get(ctx, user.ID, id)
	var orphaned string
	if err == nil {
		orphaned, err = h.resumes.Delete(ctx, user.ID, id)
	}
	if err != nil {
		if errors.Is(err, resume.ErrNotFound) {
			log.Warn("delete refused: not owner or missing")
			redirectWithFlash(c, "/my-resumes", "danger", notFoundMessage)
			return
		}
		log.Error("delete resume failed", slog.Any("error", err))
		redirectWithFlash(c, "/my-resumes", "danger", genericFailure)
		return
	}

	storage.Cleanup(ctx, h.store, orphaned, log)
	if rec.PdfKey != "" {
		if err := h.store.Delete(ctx, rec.PdfKey); err != nil {
			log.Warn("delete export failed", slog.String("key", rec.PdfKey), slog.Any("error", err))
		}
	}

	redirectWithFlash(c, "/my-resumes", "success", "Resume deleted successfully!")
}

// Download 投递 PDF 导出任务，结果通过 WebSocket 推送。
func (h *ResumeHandler) Download(c *gin.Context) {
	rec, ok := h.loadOwned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("resume_id", uint64(rec.ID)))
	correlationID := middleware.GetCorrelationID(c)

	task, err := tasks.NewResumeExportTask(rec.ID, rec.UserID, correlationID,
		asynq.MaxRetry(h.maxRetry),
		asynq.Timeout(exportTaskTimeout),
		asynq.Unique(exportUniqueWindow),
	)
	if err != nil {
		log.Error("create export task failed", slog.Any("error", err))
		redirectWithFlash(c, resumePath(rec.ID), "danger", genericFailure)
		return
	}

	if _, err := h.enqueuer.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			redirectWithFlash(c, resumePath(rec.ID), "info", "An export for this resume is already in progress.")
			return
		}
		log.Error("enqueue export task failed", slog.Any("error", err))
		redirectWithFlash(c, resumePath(rec.ID), "danger", "Could not start the export. Please try again.")
		return
	}
	if err := h.resumes.MarkExport(ctx, rec.ID, worker.ExportPending, ""); err != nil {
		log.Warn("mark export pending failed", slog.Any("error", err))
	}

	log.Info("export task enqueued", slog.String("correlation_id", correlationID))
	redirectWithFlash(c, resumePath(rec.ID), "info", "Your PDF is being prepared. The download starts automatically when it is ready.")
}

// ServePDF 返回已导出的 PDF；MinIO 后端改为跳转到限时直链。
func (h *ResumeHandler) ServePDF(c *gin.Context) {
	rec, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if rec.PdfStatus != worker.ExportReady || rec.PdfKey == "" {
		redirectWithFlash(c, resumePath(rec.ID), "info", "No PDF is available yet. Use Export PDF first.")
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("resume_id", uint64(rec.ID)))
	filename := fmt.Sprintf("resume-%d.pdf", rec.ID)

	if presigner, ok := h.store.(storage.Presigner); ok {
		signed, err := presigner.PresignedURL(ctx, rec.PdfKey, pdfPresignTTL)
		if err != nil {
			log.Error("presign pdf failed", slog.Any("error", err))
			renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
			return
		}
		c.Redirect(http.StatusFound, signed)
		return
	}

	obj, err := h.store.Open(ctx, rec.PdfKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			redirectWithFlash(c, resumePath(rec.ID), "info", "The exported PDF is no longer available. Please export again.")
			return
		}
		log.Error("open pdf failed", slog.Any("error", err))
		renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
		return
	}
	defer obj.Close()

	c.DataFromReader(http.StatusOK, obj.Size, "application/pdf", obj, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}

// loadOwned 读取当前用户拥有的简历；不存在与无权限统一返回 404。
func (h *ResumeHandler) loadOwned(c *gin.Context) (*database.Resume, bool) {
	user, _ := middleware.CurrentUser(c)
	id, ok := resumeID(c)
	if !ok {
		notFoundPage(c)
		return nil, false
	}
	rec, err := h.resumes.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		if !errors.Is(err, resume.ErrNotFound) {
			middleware.LoggerFromContext(c).Error("load resume failed", slog.Uint64("resume_id", uint64(id)), slog.Any("error", err))
			renderError(c, http.StatusInternalServerError, "Something went wrong", genericFailure)
			return nil, false
		}
		notFoundPage(c)
		return nil, false
	}
	return rec, true
}

func resumeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func resumePath(id uint) string {
	return "/resume/" + strconv.FormatUint(uint64(id), 10)
}

// postedValues 兼容 multipart 与 urlencoded 两种表单。
func postedValues(c *gin.Context) (url.Values, error) {
	err := c.Request.ParseMultipartForm(defaultMultipartSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = c.Request.ParseForm()
	}
	if err != nil {
		return nil, err
	}
	return c.Request.PostForm, nil
}

func draftErrorMessage(err error) string {
	switch {
	case errors.Is(err, resume.ErrMissingField):
		return "Name and profession are required."
	case errors.Is(err, resume.ErrUnknownTemplate):
		return "Unknown template selected."
	default:
		return genericFailure
	}
}
