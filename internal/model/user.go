package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account that owns tasks.
type User struct {
	ID           string    `json:"id" bson:"_id" gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username" bson:"username" gorm:"uniqueIndex;size:150;not null"`
	Email        string    `json:"email" bson:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" bson:"password_hash" gorm:"size:255;not null"` // Never expose in JSON
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
