package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"campaignledger/internal/model"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, tx *gorm.DB, campaign *model.Campaign) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(campaign).Error
}

func (r *CampaignRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaign model.Campaign
	err := tx.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// IncrementReservations takes one slot. The WHERE clause is the compare-and-swap:
// it only matches an ACTIVE campaign that still has room, so two writers can never
// both take the last slot.
func (r *CampaignRepository) IncrementReservations(ctx context.Context, tx *gorm.DB, id string) error {
	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND status = ? AND current_reservations < quota", id, model.CampaignStatusActive).
		Update("current_reservations", gorm.Expr("current_reservations + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		campaign, err := r.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if campaign.Status != model.CampaignStatusActive {
			return ErrStatusConflict
		}
		return ErrQuotaFull
	}
	return nil
}

// DecrementReservations frees one slot; it never drives the counter below zero.
func (r *CampaignRepository) DecrementReservations(ctx context.Context, tx *gorm.DB, id string) error {
	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND current_reservations > 0", id).
		Update("current_reservations", gorm.Expr("current_reservations - 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrCounterUnderflow
	}
	return nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus string) error {
	if !model.CanTransitionCampaign(fromStatus, toStatus) {
		return ErrStatusConflict
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *CampaignRepository) List(ctx context.Context, status string, page, pageSize int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Campaign{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&campaigns).Error

	return campaigns, total, err
}
