package models

import "time"

// User represents a marketplace account, either a tenant or an advertiser.
type User struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;uniqueIndex" json:"email"`
	Role           string    `gorm:"size:32;default:user" json:"role"`
	ProfilePicture string    `gorm:"size:512" json:"profile_picture,omitempty"`
	IsOnline       bool      `gorm:"not null;default:false" json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
