package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resumify/internal/api/middleware"
	"resumify/internal/storage"
)

// RegisterRoutes 注册全部页面、表单与辅助接口。
func RegisterRoutes(router *gin.Engine, app *App) {
	authHandler := NewAuthHandler(app)
	pageHandler := NewPageHandler(app)
	resumeHandler := NewResumeHandler(app)
	billingHandler := NewBillingHandler(app)
	bioHandler := NewBioHandler(app)
	staticHandler := NewStaticHandler(app.Store)
	wsHandler := NewWsHandler(app.Redis, app.logger(), app.Config.API.Origins())

	router.GET("/health", pageHandler.Health)
	if secret := strings.TrimSpace(app.Config.API.InternalSecret); secret != "" {
		router.GET("/metrics", middleware.InternalSecretMiddleware(secret), gin.WrapH(promhttp.Handler()))
	}

	router.GET("/", pageHandler.Index)
	router.GET("/pricing", pageHandler.Pricing)
	router.GET(storage.URLPrefix+"*key", staticHandler.Serve)

	router.GET("/login", authHandler.LoginPage)
	router.POST("/login", authHandler.Login)
	router.GET("/register", authHandler.RegisterPage)
	router.POST("/register", authHandler.Register)
	router.GET("/logout", authHandler.Logout)

	router.GET("/ws", wsHandler.HandleConnection)
	// 由页面脚本调用，未登录时返回 JSON 401 而不是重定向。
	router.POST("/regen/bio", bioHandler.Regenerate)

	member := router.Group("/")
	member.Use(middleware.RequireLogin())
	{
		member.GET("/start", resumeHandler.Start)
		member.POST("/generate", resumeHandler.Generate)
		member.GET("/my-resumes", resumeHandler.List)
		member.GET("/resume/:id", resumeHandler.View)
		member.GET("/resume/:id/edit", resumeHandler.EditPage)
		member.POST("/resume/:id/edit", resumeHandler.Edit)
		member.POST("/resume/:id/download", resumeHandler.Download)
		member.GET("/resume/:id/pdf", resumeHandler.ServePDF)
		member.POST("/delete_resume/:id", resumeHandler.Delete)

		member.GET("/buy_token/:count", billingHandler.BuyTokens)
		member.GET("/upgrade/:plan", billingHandler.Upgrade)
	}
}
