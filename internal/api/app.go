package api

import (
	"context"
	"html/template"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumify/internal/api/middleware"
	"resumify/internal/auth"
	"resumify/internal/billing"
	"resumify/internal/config"
	"resumify/internal/resume"
	"resumify/internal/sanitize"
	"resumify/internal/storage"
)

// Enqueuer 是 asynq.Client 的最小子集，便于测试替换。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// App 汇总 HTTP 层依赖，由 cmd/api 构建后显式传入路由。
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       redis.UniversalClient
	Enqueuer    Enqueuer
	Store       storage.Store
	Templates   *template.Template
	Sessions    *auth.SessionService
	Revocations middleware.RevocationStore
	Sanitizer   *sanitize.Sanitizer
	Writer      resume.Writer
	Generator   *resume.Generator
	Resumes     *resume.Service
	Ledger      *billing.Ledger
	Scanner     Scanner
	Logger      *slog.Logger
}

func (a *App) sessionResolver() *middleware.SessionResolver {
	return &middleware.SessionResolver{
		Sessions: a.Sessions,
		Revoked:  a.Revocations,
		DB:       a.DB,
	}
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
