package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumify/internal/api/middleware"
)

// pageData 为页面模板补全公共字段：标题、当前用户与一次性提示。
func pageData(c *gin.Context, title string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	if user, ok := middleware.CurrentUser(c); ok {
		data["User"] = user
	}
	data["Flashes"] = middleware.TakeFlashes(c)
	return data
}

func renderPage(c *gin.Context, status int, name, title string, data gin.H) {
	c.HTML(status, name, pageData(c, title, data))
}

func renderError(c *gin.Context, status int, heading, message string) {
	renderPage(c, status, "error.html", heading, gin.H{
		"Heading": heading,
		"Message": message,
	})
}

// redirectWithFlash 是表单类请求失败/成功后的统一出口（POST-redirect-GET）。
func redirectWithFlash(c *gin.Context, target, category, message string) {
	middleware.AddFlash(c, category, message)
	c.Redirect(http.StatusSeeOther, target)
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func notFoundPage(c *gin.Context) {
	renderError(c, http.StatusNotFound, "Not found", "The page you are looking for does not exist or you do not have access to it.")
}
