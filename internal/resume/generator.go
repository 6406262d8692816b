package resume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"resumify/internal/billing"
	"resumify/internal/database"
	"resumify/internal/formgroup"
	"resumify/internal/metrics"
)

var (
	// ErrPremiumTemplate means a free account selected a premium layout.
	ErrPremiumTemplate = errors.New("premium template requires a paid plan")
	// ErrNoTokens means the account has no generation left.
	ErrNoTokens = errors.New("no tokens left")
	// ErrUserNotFound means the session points at a deleted account.
	ErrUserNotFound = errors.New("user not found")
)

// Writer drafts prose for empty or weak fields.
type Writer interface {
	Bio(ctx context.Context, name, profession string, skills []string) string
	EnhanceJobDescription(ctx context.Context, title, company, desc string) string
}

// Generator runs the token-gated creation of new resumes.
type Generator struct {
	db     *gorm.DB
	writer Writer
	filter formgroup.TextFilter
	now    func() time.Time
}

// NewGenerator constructs a Generator. AI output is passed through filter before it is stored.
func NewGenerator(db *gorm.DB, writer Writer, filter formgroup.TextFilter) *Generator {
	return &Generator{db: db, writer: writer, filter: filter, now: time.Now}
}

// Prepare applies the daily reset and checks that userID may generate with layout.
// The reset is committed even when a gate refuses.
func (g *Generator) Prepare(ctx context.Context, userID uint, layout string) (*database.User, error) {
	var user database.User
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if billing.ResetIfNeeded(&user, g.now()) {
			if err := tx.Model(&user).Select("tokens", "last_token_reset").Updates(&user).Error; err != nil {
				return fmt.Errorf("reset tokens: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !billing.CanUseTemplate(&user, layout) {
		return &user, ErrPremiumTemplate
	}
	if !billing.HasTokens(&user) {
		return &user, ErrNoTokens
	}
	return &user, nil
}

// Generate fills missing prose, then inserts the resume and consumes one token atomically.
func (g *Generator) Generate(ctx context.Context, userID uint, d Draft, picture *string, enhance bool) (*database.Resume, error) {
	if d.Bio == "" {
		d.Bio = g.filter.Sanitize(g.writer.Bio(ctx, d.Name, d.Profession, d.Skills))
	}
	if enhance {
		for i := range d.Experiences {
			e := &d.Experiences[i]
			e.JobDesc = g.filter.Sanitize(g.writer.EnhanceJobDescription(ctx, e.JobTitle, e.Company, e.JobDesc))
		}
	}

	rec := database.Resume{UserID: userID, ProfilePicURL: picture}
	if err := d.Apply(&rec); err != nil {
		return nil, err
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user database.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !billing.CanUseTemplate(&user, d.Template) {
			return ErrPremiumTemplate
		}
		if !billing.HasTokens(&user) {
			return ErrNoTokens
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert resume: %w", err)
		}
		billing.DeductToken(&user)
		now := g.now()
		user.LastGenerated = &now
		if err := tx.Model(&user).Select("tokens", "last_generated").Updates(&user).Error; err != nil {
			return fmt.Errorf("deduct token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveResumeGenerated(rec.Template)
	return &rec, nil
}
