package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// PostgresRepository implements Repository on a gorm/postgres handle.
type PostgresRepository struct {
	db *gorm.DB
}

// Connect opens the database, configures the pool and migrates the
// schema.
func Connect(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	if err := db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.AuthToken{},
		&model.UserSheet{},
	); err != nil {
		return nil, err
	}

	return &PostgresRepository{db: db}, nil
}

// Close releases the underlying sql.DB resources.
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *PostgresRepository) UpsertUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// SaveAuthToken upserts the credential row inside a transaction so a
// refresh racing a revoke cannot interleave a partial update.
func (r *PostgresRepository) SaveAuthToken(ctx context.Context, token *model.AuthToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.AuthToken
		err := tx.First(&existing, "user_id = ?", token.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(token).Error
		case err != nil:
			return err
		}
		existing.EncryptedPayload = token.EncryptedPayload
		existing.Expiry = token.Expiry
		return tx.Save(&existing).Error
	})
}

func (r *PostgresRepository) GetAuthToken(ctx context.Context, userID int64) (*model.AuthToken, error) {
	var token model.AuthToken
	err := r.db.WithContext(ctx).First(&token, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *PostgresRepository) DeleteAuthToken(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Delete(&model.AuthToken{}, "user_id = ?", userID).Error
}

// SetActiveSheet deactivates any currently active sheet for the user and
// upserts the given one as active, all in one transaction so at most one
// row per user ever has is_active=true.
func (r *PostgresRepository) SetActiveSheet(ctx context.Context, userID int64, spreadsheetID, title string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.UserSheet{}).
			Where("user_id = ? AND is_active", userID).
			Update("is_active", false).Error; err != nil {
			return err
		}

		var sheet model.UserSheet
		err := tx.First(&sheet, "user_id = ? AND spreadsheet_id = ?", userID, spreadsheetID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&model.UserSheet{
				UserID:           userID,
				SpreadsheetID:    spreadsheetID,
				SpreadsheetTitle: title,
				IsActive:         true,
			}).Error
		case err != nil:
			return err
		}
		sheet.SpreadsheetTitle = title
		sheet.IsActive = true
		return tx.Save(&sheet).Error
	})
}

func (r *PostgresRepository) ActiveSheet(ctx context.Context, userID int64) (*model.UserSheet, error) {
	var sheet model.UserSheet
	err := r.db.WithContext(ctx).First(&sheet, "user_id = ? AND is_active", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *PostgresRepository) DeleteSheets(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Delete(&model.UserSheet{}, "user_id = ?", userID).Error
}
