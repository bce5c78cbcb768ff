package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campaignledger/internal/config"
	"campaignledger/internal/model"
)

// Open connects with any dialector. TranslateError maps driver duplicate-key
// errors to gorm.ErrDuplicatedKey, which the services rely on.
func Open(dialector gorm.Dialector, logLevel logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
}

func InitMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := Open(mysql.Open(cfg.DSN()), logger.Warn)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Campaign{},
		&model.Reservation{},
		&model.WalletAccount{},
		&model.WalletTransaction{},
		&model.OutboxMessage{},
	)
}
