package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"resumify/internal/api/middleware"
	"resumify/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎并挂载全局中间件；业务路由由 RegisterRoutes 注册。
func NewRouter(app *App) *gin.Engine {
	registerValidations()

	router := gin.New()
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(app.logger()),
		gin.CustomRecovery(recoverWithErrorPage),
		metrics.GinMiddleware(),
	)

	if origins := app.Config.API.Origins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Correlation-ID"},
			ExposeHeaders:    []string{"X-Correlation-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.SetHTMLTemplate(app.Templates)
	router.Use(app.sessionResolver().Middleware())

	// 未知路径回到首页并提示，与其他页面共用导航。
	router.NoRoute(func(c *gin.Context) {
		middleware.AddFlash(c, "warning", "Page not found.")
		renderPage(c, http.StatusNotFound, "index.html", "", homeData())
	})

	return router
}

func recoverWithErrorPage(c *gin.Context, recovered any) {
	middleware.LoggerFromContext(c).Error("panic recovered", slog.Any("panic", recovered))
	renderError(c, http.StatusInternalServerError, "Something went wrong", "An unexpected error occurred. Please try again.")
	c.Abort()
}
