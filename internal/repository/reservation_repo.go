package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"campaignledger/internal/model"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *model.Reservation) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *ReservationRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Reservation, error) {
	if tx == nil {
		tx = r.db
	}
	var reservation model.Reservation
	err := tx.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// GetActive returns the creator's ACTIVE hold on the campaign, or nil.
func (r *ReservationRepository) GetActive(ctx context.Context, tx *gorm.DB, campaignID string, creatorID int64) (*model.Reservation, error) {
	if tx == nil {
		tx = r.db
	}
	var reservation model.Reservation
	err := tx.WithContext(ctx).
		Where("campaign_id = ? AND creator_id = ? AND status = ?", campaignID, creatorID, model.ReservationStatusActive).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// UpdateStatus moves a reservation from fromStatus to toStatus, guarded by the
// current status value. fields are written in the same statement. Leaving ACTIVE
// clears active_key so the creator may hold the campaign again later.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus string, fields map[string]interface{}) error {
	if !model.CanTransitionReservation(fromStatus, toStatus) {
		return ErrStatusConflict
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range fields {
		updates[k] = v
	}
	if fromStatus == model.ReservationStatusActive {
		updates["active_key"] = nil
	}

	result := tx.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ExpireIfDue is the sweeper's guarded ACTIVE -> EXPIRED transition. It matches
// only while the hold is still ACTIVE and its window has elapsed at now.
func (r *ReservationRepository) ExpireIfDue(ctx context.Context, tx *gorm.DB, id string, now time.Time) error {
	result := tx.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ? AND expires_at <= ?", id, model.ReservationStatusActive, now).
		Updates(map[string]interface{}{
			"status":     model.ReservationStatusExpired,
			"active_key": nil,
			"closed_at":  now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	var reservations []*model.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.ReservationStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

func (r *ReservationRepository) ListByCreator(ctx context.Context, creatorID int64, status string, page, pageSize int) ([]*model.Reservation, int64, error) {
	var reservations []*model.Reservation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Reservation{}).Where("creator_id = ?", creatorID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("reserved_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reservations).Error

	return reservations, total, err
}

// CountByCampaign groups a campaign's reservations by status.
func (r *ReservationRepository) CountByCampaign(ctx context.Context, campaignID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
