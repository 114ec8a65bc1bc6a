package models

import "time"

// ReferralDiscount is a discount earned through the referral programme.
// At most one unused, unexpired discount per user counts as active; once
// bound to a booking it is permanently used.
type ReferralDiscount struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       string     `gorm:"size:64;index" json:"user_id"`
	AdvertiserID string     `gorm:"size:64;index" json:"advertiser_id"`
	Code         string     `gorm:"size:64;uniqueIndex" json:"code"`
	Amount       float64    `gorm:"not null" json:"amount"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	IsUsed       bool       `gorm:"not null;default:false" json:"is_used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	BookingID    *string    `gorm:"size:64" json:"booking_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
