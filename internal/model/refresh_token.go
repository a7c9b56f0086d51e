package model

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// RefreshToken is a long-lived sign-in grant. Only a hash of the opaque
// token is stored; the raw value exists only in the client's hands.
type RefreshToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"not null;index;size:64" json:"userId"`
	TokenHash string    `gorm:"not null;uniqueIndex;size:64" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// NewRefreshToken builds the stored form of raw, valid for ttl from now.
func NewRefreshToken(userID, raw string, now time.Time, ttl time.Duration) *RefreshToken {
	return &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// HashToken is the lookup key for a raw refresh token.
func HashToken(raw string) string {
	sum := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Live reports whether the token can still be exchanged at now.
func (t RefreshToken) Live(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
