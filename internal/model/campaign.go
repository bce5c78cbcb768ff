package model

import (
	"strings"
	"time"
)

const (
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
)

var CampaignStatusTransitions = map[string][]string{
	CampaignStatusActive: {CampaignStatusPaused, CampaignStatusCompleted},
	CampaignStatusPaused: {CampaignStatusActive, CampaignStatusCompleted},
}

func CanTransitionCampaign(currentStatus, targetStatus string) bool {
	return canTransition(CampaignStatusTransitions, currentStatus, targetStatus)
}

func IsValidCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted:
		return true
	}
	return false
}

// NormalizeStatus upper-cases a status or type filter from a query string so
// "deposit" and "DEPOSIT" name the same value.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Campaign is a brand offer with a fixed number of paid creator slots.
//
// CurrentReservations counts the slots that are currently consumed. It is only
// changed by the conditional increments/decrements in the repository and always
// stays within [0, Quota].
type Campaign struct {
	ID                  string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	BrandID             int64     `gorm:"index;not null" json:"brand_id"`
	Title               string    `gorm:"type:varchar(128);not null" json:"title"`
	Quota               int       `gorm:"not null" json:"quota"`
	CurrentReservations int       `gorm:"not null;default:0" json:"current_reservations"`
	DeadlineAt          time.Time `gorm:"not null" json:"deadline_at"`
	PayoutAmountMinor   int64     `gorm:"not null" json:"payout_amount_minor"`
	Currency            string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status              string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// AcceptsReservations reports whether a new hold may be taken at now.
func (c *Campaign) AcceptsReservations(now time.Time) bool {
	return c.Status == CampaignStatusActive && now.Before(c.DeadlineAt)
}

func (c *Campaign) RemainingSlots() int {
	return c.Quota - c.CurrentReservations
}

func canTransition(table map[string][]string, currentStatus, targetStatus string) bool {
	allowedStatuses, exists := table[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}
