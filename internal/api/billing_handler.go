package api

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumify/internal/api/middleware"
	"resumify/internal/billing"
)

// BillingHandler 处理额度包购买与套餐升级。
type BillingHandler struct {
	ledger *billing.Ledger
}

// NewBillingHandler 构造计费处理器。
func NewBillingHandler(app *App) *BillingHandler {
	return &BillingHandler{ledger: app.Ledger}
}

// BuyTokens 购买 1 或 5 个额度；其他数量不做任何修改。
func (h *BillingHandler) BuyTokens(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	log := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(user.ID)))

	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		redirectWithFlash(c, "/pricing", "danger", "Invalid token pack selected.")
		return
	}
	if _, err := h.ledger.BuyTokens(c.Request.Context(), user.ID, count); err != nil {
		if errors.Is(err, billing.ErrUnknownPack) {
			redirectWithFlash(c, "/pricing", "danger", "Invalid token pack selected.")
			return
		}
		log.Error("buy tokens failed", slog.Int("count", count), slog.Any("error", err))
		redirectWithFlash(c, "/pricing", "danger", genericFailure)
		return
	}

	log.Info("tokens purchased", slog.Int("count", count))
	noun := "token"
	if count > 1 {
		noun = "tokens"
	}
	redirectWithFlash(c, "/pricing", "success", fmt.Sprintf("%d %s purchased successfully.", count, noun))
}

// Upgrade 升级到 pro 或 ultimate。
func (h *BillingHandler) Upgrade(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	log := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(user.ID)))

	plan := billing.Plan(c.Param("plan"))
	if _, err := h.ledger.Upgrade(c.Request.Context(), user.ID, plan); err != nil {
		if errors.Is(err, billing.ErrUnknownPlan) {
			redirectWithFlash(c, "/pricing", "danger", "Invalid upgrade option.")
			return
		}
		log.Error("upgrade failed", slog.String("plan", string(plan)), slog.Any("error", err))
		redirectWithFlash(c, "/pricing", "danger", genericFailure)
		return
	}

	log.Info("plan upgraded", slog.String("plan", string(plan)))
	switch plan {
	case billing.PlanUltimate:
		redirectWithFlash(c, "/pricing", "success", "Welcome to Ultimate Pack. Unlimited tokens + all templates unlocked.")
	default:
		redirectWithFlash(c, "/pricing", "success", fmt.Sprintf("Upgraded to Pro Pack. %d tokens added + Premium templates unlocked.", billing.ProTokenBonus))
	}
}
