package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignledger/internal/config"
	"campaignledger/internal/infrastructure/lock"
	"campaignledger/internal/metrics"
	"campaignledger/internal/model"
	"campaignledger/internal/repository"
	"campaignledger/pkg/idgen"
)

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

type ReservationService struct {
	db              *gorm.DB
	cfg             *config.Config
	locker          Locker
	wallet          *WalletService
	campaignRepo    *repository.CampaignRepository
	reservationRepo *repository.ReservationRepository
	events          eventWriter
	logger          *zap.Logger
	now             func() time.Time
}

func NewReservationService(db *gorm.DB, locker Locker, wallet *WalletService, cfg *config.Config, logger *zap.Logger) *ReservationService {
	return &ReservationService{
		db:              db,
		cfg:             cfg,
		locker:          locker,
		wallet:          wallet,
		campaignRepo:    repository.NewCampaignRepository(db),
		reservationRepo: repository.NewReservationRepository(db),
		events:          eventWriter{outboxRepo: repository.NewOutboxRepository(db)},
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReservationService) SetClock(now func() time.Time) {
	s.now = now
}

type ReserveRequest struct {
	CampaignID     string `json:"campaign_id" binding:"required"`
	CreatorID      int64  `json:"creator_id" binding:"required,gt=0"`
	CreatorCountry string `json:"creator_country" binding:"omitempty,len=2"`
}

type SubmitRequest struct {
	ReservationID string `json:"reservation_id" binding:"required"`
	CreatorID     int64  `json:"creator_id" binding:"required,gt=0"`
	SubmissionURL string `json:"submission_url" binding:"required,url,max=1024"`
}

type ReviewRequest struct {
	ReservationID string `json:"reservation_id" binding:"required"`
	Decision      string `json:"decision" binding:"required,oneof=approved rejected"`
}

type CancelRequest struct {
	ReservationID string `json:"reservation_id" binding:"required"`
	CreatorID     int64  `json:"creator_id" binding:"required,gt=0"`
}

// SlotReleaseBound is the longest a freed hold stays unreservable after its
// expiry: one sweep interval.
func (s *ReservationService) SlotReleaseBound() time.Duration {
	return s.cfg.Business.SweepInterval
}

// Reserve takes one slot of a campaign for a creator. The checks and the
// counter increment run under the campaign lock in one DB transaction, so
// concurrent callers never push the counter past the quota.
func (s *ReservationService) Reserve(ctx context.Context, req *ReserveRequest) (reservation *model.Reservation, err error) {
	defer func() { metrics.ReserveOutcomes.WithLabelValues(reserveOutcome(err)).Inc() }()

	if req.CampaignID == "" || req.CreatorID <= 0 {
		return nil, ErrInvalidArgument
	}

	release, err := acquire(ctx, s.locker, lock.CampaignKey(req.CampaignID))
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	activeKey := model.ActiveReservationKey(req.CampaignID, req.CreatorID)
	reservation = &model.Reservation{
		ID:             idgen.GenerateReservationID(),
		CampaignID:     req.CampaignID,
		CreatorID:      req.CreatorID,
		CreatorCountry: req.CreatorCountry,
		Status:         model.ReservationStatusActive,
		ActiveKey:      &activeKey,
		ReservedAt:     now,
		ExpiresAt:      now.Add(s.cfg.Business.HoldDuration),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := s.campaignRepo.GetByID(ctx, tx, req.CampaignID)
		if err != nil {
			if errors.Is(err, repository.ErrCampaignNotFound) {
				return ErrCampaignNotFound
			}
			return err
		}
		if !campaign.AcceptsReservations(now) {
			return ErrCampaignClosed
		}
		if campaign.RemainingSlots() <= 0 {
			return ErrQuotaExceeded
		}

		existing, err := s.reservationRepo.GetActive(ctx, tx, req.CampaignID, req.CreatorID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyReserved
		}

		if err := s.campaignRepo.IncrementReservations(ctx, tx, req.CampaignID); err != nil {
			switch {
			case errors.Is(err, repository.ErrQuotaFull):
				return ErrQuotaExceeded
			case errors.Is(err, repository.ErrStatusConflict):
				return ErrCampaignClosed
			}
			return err
		}

		if err := s.reservationRepo.Create(ctx, tx, reservation); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReserved
			}
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(model.ReservationStatusActive).Inc()
	s.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("campaign_id", reservation.CampaignID),
		zap.Int64("creator_id", reservation.CreatorID),
		zap.Time("expires_at", reservation.ExpiresAt))
	return reservation, nil
}

// Submit attaches the creator's deliverable to an active, unexpired hold.
func (s *ReservationService) Submit(ctx context.Context, req *SubmitRequest) (*model.Reservation, error) {
	if req.ReservationID == "" || req.SubmissionURL == "" {
		return nil, ErrInvalidArgument
	}
	if len(req.SubmissionURL) > model.MaxSubmissionURLLen {
		return nil, fmt.Errorf("%w: submission url longer than %d bytes", ErrInvalidArgument, model.MaxSubmissionURLLen)
	}

	var reservation *model.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.getReservation(ctx, tx, req.ReservationID)
		if err != nil {
			return err
		}
		if r.CreatorID != req.CreatorID {
			return ErrUnauthorized
		}
		switch r.Status {
		case model.ReservationStatusActive:
		case model.ReservationStatusExpired:
			return ErrReservationExpired
		default:
			return ErrReservationNotActive
		}

		now := s.now()
		if r.IsExpiredAt(now) {
			return ErrReservationExpired
		}

		url := req.SubmissionURL
		err = s.reservationRepo.UpdateStatus(ctx, tx, r.ID, model.ReservationStatusActive, model.ReservationStatusSubmitted,
			map[string]interface{}{
				"submission_url": url,
				"submitted_at":   now,
			})
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrReservationNotActive
			}
			return err
		}

		r.Status = model.ReservationStatusSubmitted
		r.ActiveKey = nil
		r.SubmissionURL = &url
		r.SubmittedAt = &now
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(model.ReservationStatusSubmitted).Inc()
	s.logger.Info("reservation submitted", zap.String("reservation_id", reservation.ID))
	return reservation, nil
}

// Review settles a submitted reservation. Approval and the creator's earning
// commit together; a rejection keeps the slot consumed unless
// business.release_slot_on_reject is set.
func (s *ReservationService) Review(ctx context.Context, req *ReviewRequest) (*model.Reservation, error) {
	r, err := s.getReservation(ctx, nil, req.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.ReservationStatusSubmitted {
		return nil, ErrReservationNotActive
	}

	switch req.Decision {
	case DecisionApproved:
		err = s.approve(ctx, r)
	case DecisionRejected:
		err = s.reject(ctx, r)
	default:
		return nil, fmt.Errorf("%w: decision %q", ErrInvalidArgument, req.Decision)
	}
	if err != nil {
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(r.Status).Inc()
	s.logger.Info("reservation reviewed",
		zap.String("reservation_id", r.ID),
		zap.String("status", r.Status))
	return r, nil
}

func (s *ReservationService) approve(ctx context.Context, r *model.Reservation) error {
	campaign, err := s.campaignRepo.GetByID(ctx, nil, r.CampaignID)
	if err != nil {
		return err
	}

	return s.wallet.UpdateWallet(ctx, r.CreatorID, func(tx *gorm.DB, account *model.WalletAccount) error {
		now := s.now()
		err := s.reservationRepo.UpdateStatus(ctx, tx, r.ID, model.ReservationStatusSubmitted, model.ReservationStatusApproved,
			map[string]interface{}{
				"reviewed_at": now,
				"closed_at":   now,
			})
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrReservationNotActive
			}
			return err
		}

		earning, err := s.wallet.creditEarning(ctx, tx, account, EarningRequest{
			UserID:           r.CreatorID,
			GrossAmountMinor: campaign.PayoutAmountMinor,
			ReservationID:    r.ID,
			CountryCode:      r.CreatorCountry,
		})
		if err != nil {
			return err
		}

		r.Status = model.ReservationStatusApproved
		r.ReviewedAt = &now
		r.ClosedAt = &now
		return s.events.write(ctx, tx, s.cfg.Kafka.Topic.ReservationEvents, r.ID, EventReservationApproved, now,
			map[string]interface{}{
				"reservation": r,
				"earning":     earning,
			})
	})
}

func (s *ReservationService) reject(ctx context.Context, r *model.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		err := s.reservationRepo.UpdateStatus(ctx, tx, r.ID, model.ReservationStatusSubmitted, model.ReservationStatusRejected,
			map[string]interface{}{
				"reviewed_at": now,
				"closed_at":   now,
			})
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrReservationNotActive
			}
			return err
		}

		if s.cfg.Business.ReleaseSlotOnReject {
			if err := s.campaignRepo.DecrementReservations(ctx, tx, r.CampaignID); err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		}

		r.Status = model.ReservationStatusRejected
		r.ReviewedAt = &now
		r.ClosedAt = &now
		return s.events.write(ctx, tx, s.cfg.Kafka.Topic.ReservationEvents, r.ID, EventReservationRejected, now, r)
	})
}

// Cancel gives an active hold back. The slot is freed in the same transaction.
func (s *ReservationService) Cancel(ctx context.Context, req *CancelRequest) (*model.Reservation, error) {
	r, err := s.getReservation(ctx, nil, req.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.CreatorID != req.CreatorID {
		return nil, ErrUnauthorized
	}
	if r.Status != model.ReservationStatusActive {
		return nil, ErrReservationNotActive
	}

	release, err := acquire(ctx, s.locker, lock.CampaignKey(r.CampaignID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		err := s.reservationRepo.UpdateStatus(ctx, tx, r.ID, model.ReservationStatusActive, model.ReservationStatusCancelled,
			map[string]interface{}{"closed_at": now})
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrReservationNotActive
			}
			return err
		}
		if err := s.campaignRepo.DecrementReservations(ctx, tx, r.CampaignID); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		r.Status = model.ReservationStatusCancelled
		r.ActiveKey = nil
		r.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(model.ReservationStatusCancelled).Inc()
	s.logger.Info("reservation cancelled", zap.String("reservation_id", r.ID))
	return r, nil
}

// ListExpired returns active holds whose expiry is at or before now.
func (s *ReservationService) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	return s.reservationRepo.ListExpired(ctx, now, limit)
}

// Expire moves one overdue hold to EXPIRED and frees its slot. It reports
// false when another writer already moved the hold out of ACTIVE.
func (s *ReservationService) Expire(ctx context.Context, reservation *model.Reservation, now time.Time) (bool, error) {
	expired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.reservationRepo.ExpireIfDue(ctx, tx, reservation.ID, now)
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.campaignRepo.DecrementReservations(ctx, tx, reservation.CampaignID); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		expired = true
		return s.events.write(ctx, tx, s.cfg.Kafka.Topic.ReservationEvents, reservation.ID, EventReservationExpired, now,
			map[string]interface{}{
				"reservation_id": reservation.ID,
				"campaign_id":    reservation.CampaignID,
				"creator_id":     reservation.CreatorID,
				"expires_at":     reservation.ExpiresAt,
			})
	})
	if err != nil {
		return false, err
	}
	if expired {
		metrics.ReservationTransitions.WithLabelValues(model.ReservationStatusExpired).Inc()
	}
	return expired, nil
}

func (s *ReservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return s.getReservation(ctx, nil, id)
}

func (s *ReservationService) ListByCreator(ctx context.Context, creatorID int64, status string, page, pageSize int) ([]*model.Reservation, int64, error) {
	status = model.NormalizeStatus(status)
	if creatorID <= 0 || (status != "" && !model.IsValidReservationStatus(status)) {
		return nil, 0, ErrInvalidArgument
	}
	return s.reservationRepo.ListByCreator(ctx, creatorID, status, page, pageSize)
}

func (s *ReservationService) getReservation(ctx context.Context, tx *gorm.DB, id string) (*model.Reservation, error) {
	r, err := s.reservationRepo.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return r, nil
}

func reserveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, ErrCampaignClosed), errors.Is(err, ErrCampaignNotFound):
		return "closed"
	case errors.Is(err, ErrTransientConflict):
		return "conflict"
	default:
		return "error"
	}
}
