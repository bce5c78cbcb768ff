package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignledger/internal/config"
	"campaignledger/internal/infrastructure/cache"
	"campaignledger/internal/infrastructure/database"
	"campaignledger/internal/infrastructure/lock"
	"campaignledger/internal/payout"
	"campaignledger/internal/service"
	"campaignledger/pkg/idgen"
)

// app holds the connections and services shared by the commands.
type app struct {
	db           *gorm.DB
	redis        *redis.Client
	wallet       *service.WalletService
	reservations *service.ReservationService
	campaigns    *service.CampaignService
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := idgen.Init(1); err != nil {
		return nil, err
	}

	db, err := database.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, err
	}
	rdb, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	calc, err := payout.NewCalculatorFromConfig(cfg.Withholding, cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("payout calculator: %w", err)
	}

	locker := lock.NewLocker(rdb, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	wallet := service.NewWalletService(db, locker, calc, cfg, logger)

	return &app{
		db:           db,
		redis:        rdb,
		wallet:       wallet,
		reservations: service.NewReservationService(db, locker, wallet, cfg, logger),
		campaigns:    service.NewCampaignService(db, calc, wallet, cfg, logger),
	}, nil
}

func (a *app) Close() {
	_ = a.redis.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
