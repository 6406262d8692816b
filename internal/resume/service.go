package resume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"resumify/internal/database"
)

// ErrNotFound covers both missing rows and rows owned by someone else.
var ErrNotFound = errors.New("resume not found")

// Service owns reads and mutations of existing resumes. Every call is scoped to one owner.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns the owner's resumes, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]database.Resume, error) {
	var resumes []database.Resume
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return resumes, nil
}

// Get loads one resume owned by userID.
func (s *Service) Get(ctx context.Context, userID, id uint) (*database.Resume, error) {
	return findOwned(s.db.WithContext(ctx), userID, id)
}

// Orphans lists stored objects an update left unreferenced.
type Orphans struct {
	// Picture is the replaced profile picture URL, set only when no resume references it.
	Picture string
	// Export is the object key of a PDF rendered from the previous content.
	Export string
}

// Update overwrites every mutable field from d. When picture is non-nil it replaces the
// profile picture. Any previous export is discarded since it no longer matches the content.
func (s *Service) Update(ctx context.Context, userID, id uint, d Draft, picture *string) (*database.Resume, Orphans, error) {
	var (
		updated  *database.Resume
		orphaned Orphans
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		previous := r.ProfilePicURL
		if err := d.Apply(r); err != nil {
			return err
		}
		if picture != nil {
			r.ProfilePicURL = picture
		}
		orphaned.Export = r.PdfKey
		r.PdfKey = ""
		r.PdfStatus = ""
		if err := tx.Save(r).Error; err != nil {
			return fmt.Errorf("save resume: %w", err)
		}
		if picture != nil && previous != nil && *previous != *picture {
			unused, err := pictureUnused(tx, *previous)
			if err != nil {
				return err
			}
			if unused {
				orphaned.Picture = *previous
			}
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, Orphans{}, err
	}
	return updated, orphaned, nil
}

// Duplicate copies every field of an owned resume into a new row. Export state is not copied.
func (s *Service) Duplicate(ctx context.Context, userID, id uint) (*database.Resume, error) {
	var clone database.Resume
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		clone = *src
		clone.ID = 0
		clone.CreatedAt = time.Time{}
		clone.UpdatedAt = time.Time{}
		clone.PdfKey = ""
		clone.PdfStatus = ""
		if src.ProfilePicURL != nil {
			pic := *src.ProfilePicURL
			clone.ProfilePicURL = &pic
		}
		if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("duplicate resume: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &clone, nil
}

// Delete removes an owned resume. It returns the picture URL when nothing else references it.
func (s *Service) Delete(ctx context.Context, userID, id uint) (string, error) {
	var orphaned string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&database.Resume{}, r.ID).Error; err != nil {
			return fmt.Errorf("delete resume: %w", err)
		}
		if r.ProfilePicURL != nil {
			unused, err := pictureUnused(tx, *r.ProfilePicURL)
			if err != nil {
				return err
			}
			if unused {
				orphaned = *r.ProfilePicURL
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return orphaned, nil
}

// MarkExport records the state of an asynchronous PDF export.
func (s *Service) MarkExport(ctx context.Context, id uint, status, key string) error {
	updates := map[string]any{"pdf_status": status}
	if key != "" {
		updates["pdf_key"] = key
	}
	if err := s.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("mark export: %w", err)
	}
	return nil
}

func findOwned(db *gorm.DB, userID, id uint) (*database.Resume, error) {
	var r database.Resume
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	return &r, nil
}

func pictureUnused(tx *gorm.DB, url string) (bool, error) {
	var n int64
	if err := tx.Model(&database.Resume{}).Where("profile_pic_url = ?", url).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count picture references: %w", err)
	}
	return n == 0, nil
}
