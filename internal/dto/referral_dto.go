package dto

import (
	"time"

	"github.com/rentora/rentora-api/internal/models"
)

// ReferralIssueRequest creates a referral discount for a user.
type ReferralIssueRequest struct {
	UserID       string  `json:"user_id" validate:"required,max=64"`
	AdvertiserID string  `json:"advertiser_id" validate:"required,max=64"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

// ReferralClaimRequest claims a shared referral code for a new user.
type ReferralClaimRequest struct {
	Code   string `json:"code" validate:"required,max=64"`
	UserID string `json:"user_id" validate:"required,max=64"`
}

// ReferralRedeemRequest binds an active discount to a booking.
type ReferralRedeemRequest struct {
	Code      string `json:"code" validate:"required,max=64"`
	BookingID string `json:"booking_id" validate:"required,max=64"`
}

// ReferralDiscountResponse is the serialized representation of a discount.
type ReferralDiscountResponse struct {
	ID           uint       `json:"id"`
	UserID       string     `json:"user_id"`
	AdvertiserID string     `json:"advertiser_id"`
	Code         string     `json:"code"`
	Amount       float64    `json:"amount"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsUsed       bool       `json:"is_used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	BookingID    *string    `json:"booking_id,omitempty"`
	ShareLink    string     `json:"share_link,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewReferralDiscountResponse converts a model into a DTO.
func NewReferralDiscountResponse(discount models.ReferralDiscount, shareLink string) ReferralDiscountResponse {
	return ReferralDiscountResponse{
		ID:           discount.ID,
		UserID:       discount.UserID,
		AdvertiserID: discount.AdvertiserID,
		Code:         discount.Code,
		Amount:       discount.Amount,
		ExpiresAt:    discount.ExpiresAt,
		IsUsed:       discount.IsUsed,
		UsedAt:       discount.UsedAt,
		BookingID:    discount.BookingID,
		ShareLink:    shareLink,
		CreatedAt:    discount.CreatedAt,
	}
}
