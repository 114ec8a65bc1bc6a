package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/models"
)

// ErrDiscountConflict indicates the user already holds an active discount.
var ErrDiscountConflict = errors.New("user already has an active discount")

// DiscountRepository persists referral discounts.
type DiscountRepository interface {
	Create(ctx context.Context, discount *models.ReferralDiscount) error
	Active(ctx context.Context, userID string, now time.Time) (models.ReferralDiscount, error)
	FindByCode(ctx context.Context, code string) (models.ReferralDiscount, error)
	Redeem(ctx context.Context, code, bookingID string, at time.Time) (models.ReferralDiscount, error)
}

type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository constructs a discount repository backed by GORM.
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

// Create inserts the discount, rejecting it inside the transaction when the
// user already holds an unused, unexpired one.
func (r *discountRepository) Create(ctx context.Context, discount *models.ReferralDiscount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.ReferralDiscount{}).
			Where("user_id = ? AND is_used = ? AND expires_at > ?", discount.UserID, false, time.Now()).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrDiscountConflict
		}

		return tx.Create(discount).Error
	})
}

func (r *discountRepository) Active(ctx context.Context, userID string, now time.Time) (models.ReferralDiscount, error) {
	var discount models.ReferralDiscount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, now).
		Order("created_at DESC").
		First(&discount).Error
	if err != nil {
		return models.ReferralDiscount{}, err
	}
	return discount, nil
}

func (r *discountRepository) FindByCode(ctx context.Context, code string) (models.ReferralDiscount, error) {
	var discount models.ReferralDiscount
	if err := r.db.WithContext(ctx).First(&discount, "code = ?", code).Error; err != nil {
		return models.ReferralDiscount{}, err
	}
	return discount, nil
}

// Redeem binds the discount to a booking and marks it permanently used. The
// guarded update makes double redemption impossible even under concurrency.
func (r *discountRepository) Redeem(ctx context.Context, code, bookingID string, at time.Time) (models.ReferralDiscount, error) {
	var discount models.ReferralDiscount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ReferralDiscount{}).
			Where("code = ? AND is_used = ? AND expires_at > ?", code, false, at).
			Updates(map[string]interface{}{
				"is_used":    true,
				"used_at":    at,
				"booking_id": bookingID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.First(&discount, "code = ?", code).Error
	})
	if err != nil {
		return models.ReferralDiscount{}, err
	}

	return discount, nil
}
