package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"resumify/internal/api/middleware"
	"resumify/internal/billing"
)

// PageHandler 渲染首页、价格页并提供健康检查。
type PageHandler struct {
	db     *gorm.DB
	ledger *billing.Ledger
}

// NewPageHandler 构造页面处理器。
func NewPageHandler(app *App) *PageHandler {
	return &PageHandler{db: app.DB, ledger: app.Ledger}
}

type offerView struct {
	Description string
	Price       string
	Href        string
}

func homeData() gin.H {
	return gin.H{"FreeTokens": billing.FreeDailyTokens}
}

// Index 渲染首页。
func (h *PageHandler) Index(c *gin.Context) {
	renderPage(c, http.StatusOK, "index.html", "", homeData())
}

// Pricing 列出可购买的额度包与套餐，登录用户同时看到购买记录。
func (h *PageHandler) Pricing(c *gin.Context) {
	var offers []offerView
	for _, count := range []int{1, 5} {
		if offer, ok := billing.TokenPack(count); ok {
			offers = append(offers, offerView{
				Description: offer.Description,
				Price:       formatCents(offer.Price),
				Href:        "/buy_token/" + strconv.Itoa(count),
			})
		}
	}
	for _, plan := range []billing.Plan{billing.PlanPro, billing.PlanUltimate} {
		if offer, ok := billing.PlanOffer(plan); ok {
			offers = append(offers, offerView{
				Description: offer.Description,
				Price:       formatCents(offer.Price),
				Href:        "/upgrade/" + string(plan),
			})
		}
	}

	data := gin.H{
		"Offers":     offers,
		"FreeTokens": billing.FreeDailyTokens,
	}
	if user, ok := middleware.CurrentUser(c); ok {
		purchases, err := h.ledger.History(c.Request.Context(), user.ID)
		if err != nil {
			middleware.LoggerFromContext(c).Error("load purchases failed", slog.Any("error", err))
		} else {
			data["Purchases"] = purchases
		}
	}
	renderPage(c, http.StatusOK, "pricing.html", "Pricing", data)
}

// Health 检查数据库连接是否可用。
func (h *PageHandler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("health check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// formatCents 把以分为单位的价格格式化为 $1.99。
func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
