package api

import (
	"net/http"
	"strings"
	"testing"

	"resumify/internal/billing"
	"resumify/internal/database"
)

func countPurchases(t *testing.T, env *testEnv, userID uint) int64 {
	t.Helper()
	var n int64
	if err := env.db.Model(&database.Purchase{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	return n
}

func TestBuyTokens(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "ada@example.com", "free", 1)

	expectRedirect(t, env.get("/buy_token/5", env.sessionCookie(t, user.ID)), "/pricing")

	if got := env.reloadUser(t, user.ID).Tokens; got != 6 {
		t.Fatalf("expected 6 tokens, got %d", got)
	}
	if n := countPurchases(t, env, user.ID); n != 1 {
		t.Fatalf("expected one purchase, got %d", n)
	}
}

func TestBuyTokensUnknownPack(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "ada@example.com", "free", 1)
	cookie := env.sessionCookie(t, user.ID)

	for _, path := range []string{"/buy_token/3", "/buy_token/abc"} {
		expectRedirect(t, env.get(path, cookie), "/pricing")
	}
	if got := env.reloadUser(t, user.ID).Tokens; got != 1 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
	if n := countPurchases(t, env, user.ID); n != 0 {
		t.Fatalf("expected no purchase, got %d", n)
	}
}

func TestUpgrade(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "ada@example.com", "free", 2)
	cookie := env.sessionCookie(t, user.ID)

	expectRedirect(t, env.get("/upgrade/pro", cookie), "/pricing")
	got := env.reloadUser(t, user.ID)
	if got.Plan != string(billing.PlanPro) || got.Tokens != 2+billing.ProTokenBonus {
		t.Fatalf("unexpected account after pro upgrade: plan %q tokens %d", got.Plan, got.Tokens)
	}

	expectRedirect(t, env.get("/upgrade/gold", cookie), "/pricing")
	if n := countPurchases(t, env, user.ID); n != 1 {
		t.Fatalf("expected only the pro purchase, got %d", n)
	}

	page := env.get("/pricing", cookie)
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "Pro Pack") {
		t.Fatalf("expected purchase history on pricing page, got %d", page.Code)
	}
}
