package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"gorm.io/gorm"
)

// phonePattern matches the 10-digit local numbers used as record keys.
var phonePattern = regexp.MustCompile(`^\d{10}$`)

// BorrowerRepository handles read-only access to borrower records.
type BorrowerRepository struct {
	db *gorm.DB
}

func NewBorrowerRepository(db *gorm.DB) *BorrowerRepository {
	return &BorrowerRepository{db: db}
}

// FetchBorrower looks up the borrower snapshot by phone. Absence is the
// expected domain.ErrBorrowerNotFound outcome, not a backend failure.
func (r *BorrowerRepository) FetchBorrower(ctx context.Context, phone string) (*domain.BorrowerRecord, error) {
	if !phonePattern.MatchString(phone) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedPhone, phone)
	}

	var record domain.BorrowerRecord
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBorrowerNotFound
		}
		return nil, fmt.Errorf("failed to fetch borrower: %w", err)
	}
	return &record, nil
}
