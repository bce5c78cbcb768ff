package model

import (
	"strconv"
	"time"
)

const (
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusSubmitted = "SUBMITTED"
	ReservationStatusApproved  = "APPROVED"
	ReservationStatusRejected  = "REJECTED"
	ReservationStatusExpired   = "EXPIRED"
	ReservationStatusCancelled = "CANCELLED"
)

// MaxSubmissionURLLen matches the submission_url column width.
const MaxSubmissionURLLen = 1024

// ReservationTransitions is the hold state machine. Statuses without an entry are terminal.
var ReservationTransitions = map[string][]string{
	ReservationStatusActive:    {ReservationStatusSubmitted, ReservationStatusExpired, ReservationStatusCancelled},
	ReservationStatusSubmitted: {ReservationStatusApproved, ReservationStatusRejected},
}

func CanTransitionReservation(currentStatus, targetStatus string) bool {
	return canTransition(ReservationTransitions, currentStatus, targetStatus)
}

func IsValidReservationStatus(status string) bool {
	switch status {
	case ReservationStatusActive, ReservationStatusSubmitted, ReservationStatusApproved,
		ReservationStatusRejected, ReservationStatusExpired, ReservationStatusCancelled:
		return true
	}
	return false
}

// Reservation is a creator's time-bounded hold on one campaign slot.
//
// ActiveKey is "<campaign>:<creator>" while the hold is ACTIVE and NULL afterwards;
// its unique index keeps a single active hold per pair.
type Reservation struct {
	ID             string     `gorm:"type:varchar(32);primaryKey" json:"id"`
	CampaignID     string     `gorm:"type:varchar(32);index:idx_reservation_campaign_creator;not null" json:"campaign_id"`
	CreatorID      int64      `gorm:"index:idx_reservation_campaign_creator;index;not null" json:"creator_id"`
	CreatorCountry string     `gorm:"type:varchar(2)" json:"creator_country"`
	Status         string     `gorm:"type:varchar(20);index:idx_reservation_status_expires;not null" json:"status"`
	ActiveKey      *string    `gorm:"type:varchar(80);uniqueIndex" json:"-"`
	ReservedAt     time.Time  `gorm:"not null" json:"reserved_at"`
	ExpiresAt      time.Time  `gorm:"index:idx_reservation_status_expires;not null" json:"expires_at"`
	SubmissionURL  *string    `gorm:"type:varchar(1024)" json:"submission_url"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "campaign_reservation"
}

func ActiveReservationKey(campaignID string, creatorID int64) string {
	return campaignID + ":" + strconv.FormatInt(creatorID, 10)
}

func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
