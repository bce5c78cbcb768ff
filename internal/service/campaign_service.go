package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignledger/internal/config"
	"campaignledger/internal/model"
	"campaignledger/internal/payout"
	"campaignledger/internal/repository"
	"campaignledger/pkg/idgen"
)

type CampaignService struct {
	db              *gorm.DB
	cfg             *config.Config
	calc            *payout.Calculator
	wallet          *WalletService
	campaignRepo    *repository.CampaignRepository
	reservationRepo *repository.ReservationRepository
	logger          *zap.Logger
	now             func() time.Time
}

func NewCampaignService(db *gorm.DB, calc *payout.Calculator, wallet *WalletService, cfg *config.Config, logger *zap.Logger) *CampaignService {
	return &CampaignService{
		db:              db,
		cfg:             cfg,
		calc:            calc,
		wallet:          wallet,
		campaignRepo:    repository.NewCampaignRepository(db),
		reservationRepo: repository.NewReservationRepository(db),
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *CampaignService) SetClock(now func() time.Time) {
	s.now = now
}

type CreateCampaignRequest struct {
	BrandID           int64     `json:"brand_id" binding:"required,gt=0"`
	Title             string    `json:"title" binding:"required,max=128"`
	Quota             int       `json:"quota" binding:"required,gt=0"`
	PayoutAmountMinor int64     `json:"payout_amount_minor" binding:"required,gt=0"`
	DeadlineAt        time.Time `json:"deadline_at" binding:"required"`
	// ChargeBudget debits the quoted total from the brand's wallet in the
	// same transaction that creates the campaign.
	ChargeBudget bool `json:"charge_budget"`
}

type CreateCampaignResponse struct {
	Campaign *model.Campaign          `json:"campaign"`
	Quote    payout.Quote             `json:"quote"`
	Charge   *model.WalletTransaction `json:"charge,omitempty"`
}

type CampaignDetail struct {
	Campaign       *model.Campaign  `json:"campaign"`
	RemainingSlots int              `json:"remaining_slots"`
	StatusCounts   map[string]int64 `json:"status_counts"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*CreateCampaignResponse, error) {
	now := s.now()
	title := strings.TrimSpace(req.Title)
	switch {
	case req.BrandID <= 0, title == "":
		return nil, ErrInvalidArgument
	case req.Quota <= 0 || req.PayoutAmountMinor <= 0:
		return nil, fmt.Errorf("%w: quota and payout must be positive", ErrInvalidArgument)
	case !req.DeadlineAt.After(now):
		return nil, fmt.Errorf("%w: deadline is in the past", ErrInvalidArgument)
	}

	quote, err := s.calc.Quote(req.PayoutAmountMinor, req.Quota)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	campaign := &model.Campaign{
		ID:                idgen.GenerateCampaignID(),
		BrandID:           req.BrandID,
		Title:             title,
		Quota:             req.Quota,
		DeadlineAt:        req.DeadlineAt.UTC(),
		PayoutAmountMinor: req.PayoutAmountMinor,
		Currency:          s.cfg.Business.Currency,
		Status:            model.CampaignStatusActive,
	}
	resp := &CreateCampaignResponse{Campaign: campaign, Quote: quote}

	if req.ChargeBudget {
		err = s.wallet.UpdateWallet(ctx, req.BrandID, func(tx *gorm.DB, account *model.WalletAccount) error {
			if err := s.campaignRepo.Create(ctx, tx, campaign); err != nil {
				return fmt.Errorf("create campaign: %w", err)
			}
			charge, err := s.wallet.charge(ctx, tx, account, ChargeRequest{
				UserID:      req.BrandID,
				AmountMinor: quote.TotalMinor,
				Remark:      "budget for campaign " + campaign.ID,
			})
			resp.Charge = charge
			return err
		})
	} else {
		err = s.campaignRepo.Create(ctx, nil, campaign)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.Int64("brand_id", campaign.BrandID),
		zap.Int("quota", campaign.Quota),
		zap.Int64("quote_total_minor", quote.TotalMinor))
	return resp, nil
}

func (s *CampaignService) UpdateCampaignStatus(ctx context.Context, id, status string) (*model.Campaign, error) {
	status = model.NormalizeStatus(status)
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransitionCampaign(campaign.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrCampaignStatus, campaign.Status, status)
	}

	if err := s.campaignRepo.UpdateStatus(ctx, nil, id, campaign.Status, status); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCampaignStatus
		}
		return nil, err
	}
	campaign.Status = status

	s.logger.Info("campaign status changed", zap.String("campaign_id", id), zap.String("status", status))
	return campaign, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*CampaignDetail, error) {
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.reservationRepo.CountByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetail{
		Campaign:       campaign,
		RemainingSlots: campaign.RemainingSlots(),
		StatusCounts:   counts,
	}, nil
}

func (s *CampaignService) ListCampaigns(ctx context.Context, status string, page, pageSize int) ([]*model.Campaign, int64, error) {
	status = model.NormalizeStatus(status)
	if status != "" && !model.IsValidCampaignStatus(status) {
		return nil, 0, ErrInvalidArgument
	}
	return s.campaignRepo.List(ctx, status, page, pageSize)
}

// Quote prices a campaign without creating it.
func (s *CampaignService) Quote(payoutPerCreatorMinor int64, creatorCount int) (payout.Quote, error) {
	q, err := s.calc.Quote(payoutPerCreatorMinor, creatorCount)
	if err != nil {
		return payout.Quote{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return q, nil
}

func (s *CampaignService) getCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}
