package database

import (
	"github.com/falconsupport/api/internal/config"
	"github.com/falconsupport/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Request{},
		&model.Guide{},
		&model.User{},
		&model.RefreshToken{},
	)
	if err != nil {
		return err
	}

	// Emails are unique regardless of case
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))")

	// Partial unique index for OAuth identities
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_provider_id ON users(provider, provider_id) WHERE provider_id <> ''")

	// Dashboard reads filter by kind and status together
	db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_kind_status ON requests(kind, status)")

	return nil
}
