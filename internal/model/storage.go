package model

import "time"

// User is a chat-platform user. Created on first interaction, never
// deleted.
type User struct {
	UserID      int64  `gorm:"primaryKey"`
	DisplayName string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthToken stores one encrypted Credential per user.
type AuthToken struct {
	UserID           int64      `gorm:"primaryKey"`
	EncryptedPayload []byte     `gorm:"type:bytea;not null"`
	Expiry           *time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserSheet associates a user with a spreadsheet. Several rows may exist
// per user, but at most one carries IsActive=true; the repository
// enforces that, not the schema.
type UserSheet struct {
	ID               uint   `gorm:"primaryKey"`
	UserID           int64  `gorm:"index;not null"`
	SpreadsheetID    string `gorm:"type:text;not null"`
	SpreadsheetTitle string `gorm:"type:text"`
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
