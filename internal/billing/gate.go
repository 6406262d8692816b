// Package billing holds the token and plan rules and the append-only purchase ledger.
package billing

import (
	"errors"
	"time"

	"resumify/internal/database"
	"resumify/internal/templates"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanUltimate Plan = "ultimate"
)

const (
	// FreeDailyTokens is the allotment a free account is restored to each UTC day.
	FreeDailyTokens = 3
	// ProTokenBonus is added on a pro upgrade.
	ProTokenBonus = 15
	// UnlimitedTokens is the balance stored for ultimate accounts; it is never decremented.
	UnlimitedTokens = 9999
)

// ErrUnknownPlan is returned for plan names outside pro and ultimate.
var ErrUnknownPlan = errors.New("unknown plan")

// ParsePlan maps a stored or requested plan name to a Plan.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanUltimate:
		return Plan(s), true
	}
	return "", false
}

func planOf(u *database.User) Plan {
	if p, ok := ParsePlan(u.Plan); ok {
		return p
	}
	return PlanFree
}

// IsPaid reports whether the user is on pro or ultimate.
func IsPaid(u *database.User) bool {
	p := planOf(u)
	return p == PlanPro || p == PlanUltimate
}

// IsUnlimited reports whether the user's balance is ignored.
func IsUnlimited(u *database.User) bool {
	return planOf(u) == PlanUltimate
}

// ResetIfNeeded starts a new daily window when the last reset is not on now's UTC day.
// Free accounts below the daily allotment are topped up to it. It reports whether u changed.
func ResetIfNeeded(u *database.User, now time.Time) bool {
	now = now.UTC()
	if u.LastTokenReset != nil && sameDay(u.LastTokenReset.UTC(), now) {
		return false
	}
	u.LastTokenReset = &now
	if planOf(u) == PlanFree && u.Tokens < FreeDailyTokens {
		u.Tokens = FreeDailyTokens
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// HasTokens reports whether the user may generate a resume.
func HasTokens(u *database.User) bool {
	return IsUnlimited(u) || u.Tokens > 0
}

// CanUseTemplate reports whether the user may select layout.
func CanUseTemplate(u *database.User, layout string) bool {
	return templates.IsFree(layout) || IsPaid(u)
}

// DeductToken consumes one token unless the user is unlimited. The balance never goes below zero.
func DeductToken(u *database.User) {
	if IsUnlimited(u) {
		return
	}
	if u.Tokens > 0 {
		u.Tokens--
	}
}

// ApplyPlan moves the user onto plan without recording a purchase.
func ApplyPlan(u *database.User, plan Plan) error {
	switch plan {
	case PlanPro:
		u.Tokens += ProTokenBonus
	case PlanUltimate:
		u.Tokens = UnlimitedTokens
	default:
		return ErrUnknownPlan
	}
	u.Plan = string(plan)
	return nil
}
