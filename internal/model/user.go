package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"not null;size:255" json:"email"`
	PasswordHash  string    `gorm:"size:255" json:"-"`
	Name          string    `gorm:"size:255" json:"name"`
	Provider      string    `gorm:"not null;size:20;default:'password'" json:"provider"`
	ProviderID    string    `gorm:"size:255" json:"-"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	EmailVerified bool      `gorm:"default:false" json:"emailVerified"`
	IsAdmin       bool      `gorm:"default:false" json:"admin"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserListing is the admin view of an account.
type UserListing struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Admin         bool   `json:"admin"`
}
