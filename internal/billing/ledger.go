package billing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"resumify/internal/database"
	"resumify/internal/metrics"
)

// ErrUnknownPack is returned for token pack sizes without a price.
var ErrUnknownPack = errors.New("unknown token pack")

// Offer is a priced item on the pricing page.
type Offer struct {
	Price       int
	Description string
}

var tokenPacks = map[int]Offer{
	1: {Price: 50, Description: "1 Token Pack"},
	5: {Price: 100, Description: "5 Token Pack"},
}

var planOffers = map[Plan]Offer{
	PlanPro:      {Price: 199, Description: "Pro Pack"},
	PlanUltimate: {Price: 499, Description: "Ultimate Pack"},
}

// TokenPack returns the offer for a pack size.
func TokenPack(count int) (Offer, bool) {
	o, ok := tokenPacks[count]
	return o, ok
}

// PlanOffer returns the offer for a paid plan.
func PlanOffer(plan Plan) (Offer, bool) {
	o, ok := planOffers[plan]
	return o, ok
}

// Ledger applies purchases to accounts and records them.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// BuyTokens credits a known pack and records the purchase. Unknown packs change nothing.
func (l *Ledger) BuyTokens(ctx context.Context, userID uint, count int) (*database.Purchase, error) {
	offer, ok := TokenPack(count)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPack, count)
	}
	return l.record(ctx, userID, offer, func(u *database.User) error {
		u.Tokens += count
		return nil
	})
}

// Upgrade moves the account onto a paid plan and records the purchase.
func (l *Ledger) Upgrade(ctx context.Context, userID uint, plan Plan) (*database.Purchase, error) {
	offer, ok := PlanOffer(plan)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	return l.record(ctx, userID, offer, func(u *database.User) error {
		return ApplyPlan(u, plan)
	})
}

// History lists the user's purchases, newest first.
func (l *Ledger) History(ctx context.Context, userID uint) ([]database.Purchase, error) {
	var purchases []database.Purchase
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

func (l *Ledger) record(ctx context.Context, userID uint, offer Offer, apply func(*database.User) error) (*database.Purchase, error) {
	purchase := database.Purchase{
		UserID:      userID,
		Amount:      offer.Price,
		Description: offer.Description,
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user database.User
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if err := apply(&user); err != nil {
			return err
		}
		if err := tx.Model(&user).Select("tokens", "plan").Updates(&user).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObservePurchase(purchase.Description)
	return &purchase, nil
}
