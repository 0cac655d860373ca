package models

import (
	"time"

	"gorm.io/gorm"
)

type OfferStatus string

const (
	OfferUnset    OfferStatus = ""
	OfferAccepted OfferStatus = "accepted"
	OfferRefused  OfferStatus = "refused"
)

const DefaultValidityDays = 7

type Offer struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Price          float64     `gorm:"not null" json:"price"`
	PartnerID      uint        `gorm:"not null;index" json:"partner_id"`
	Partner        *Partner    `json:"partner,omitempty"`
	PropertyID     uint        `gorm:"not null;index" json:"property_id"`
	Validity       int         `gorm:"not null" json:"validity"`
	Status         OfferStatus `gorm:"size:10;index" json:"status"`
	DateDeadline   *time.Time  `json:"date_deadline"`
	PropertyTypeID *uint       `gorm:"index" json:"property_type_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ComputeDeadline derives the deadline from the creation date and the
// validity. An offer that has not been stored yet has no deadline.
func (o *Offer) ComputeDeadline() {
	if o.CreatedAt.IsZero() {
		o.DateDeadline = nil
		return
	}
	deadline := DateOf(o.CreatedAt).AddDate(0, 0, o.Validity)
	o.DateDeadline = &deadline
}

// SetDeadline is the inverse of ComputeDeadline: it derives the validity
// from the requested deadline, falling back to the default validity when
// either date is unknown.
func (o *Offer) SetDeadline(deadline *time.Time) {
	if deadline != nil && !o.CreatedAt.IsZero() {
		o.Validity = DaysBetween(DateOf(o.CreatedAt), DateOf(*deadline))
	} else {
		o.Validity = DefaultValidityDays
	}
	o.ComputeDeadline()
}

func (o *Offer) BeforeSave(tx *gorm.DB) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.ComputeDeadline()
	return nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from one calendar date to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
