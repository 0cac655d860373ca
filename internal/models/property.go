package models

import (
	"time"

	"gorm.io/gorm"
)

// PropertyState is the lifecycle state of a listing.
type PropertyState string

const (
	StateNew           PropertyState = "new"
	StateOfferReceived PropertyState = "offer_received"
	StateOfferAccepted PropertyState = "offer_accepted"
	StateSold          PropertyState = "sold"
	StateCanceled      PropertyState = "canceled"
)

// Closed reports whether the state is terminal.
func (s PropertyState) Closed() bool {
	return s == StateSold || s == StateCanceled
}

type GardenOrientation string

const (
	OrientationNorth GardenOrientation = "north"
	OrientationSouth GardenOrientation = "south"
	OrientationEast  GardenOrientation = "east"
	OrientationWest  GardenOrientation = "west"
)

const (
	DefaultBedrooms   = 2
	DefaultGardenArea = 10
)

type Property struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	Name              string            `gorm:"size:200;not null" json:"name"`
	Description       string            `json:"description"`
	Postcode          string            `gorm:"size:20;index" json:"postcode"`
	DateAvailability  *time.Time        `json:"date_availability"`
	ExpectedPrice     float64           `json:"expected_price"`
	SellingPrice      float64           `json:"selling_price"`
	Bedrooms          int               `json:"bedrooms"`
	LivingArea        int               `json:"living_area"`
	Facades           int               `json:"facades"`
	Garage            bool              `json:"garage"`
	Garden            bool              `json:"garden"`
	GardenArea        int               `json:"garden_area"`
	GardenOrientation GardenOrientation `gorm:"size:10" json:"garden_orientation"`
	TotalArea         int               `json:"total_area"`
	State             PropertyState     `gorm:"size:20;not null;index" json:"state"`
	Latitude          *float64          `json:"latitude"`
	Longitude         *float64          `json:"longitude"`

	PropertyTypeID *uint         `gorm:"index" json:"property_type_id"`
	PropertyType   *PropertyType `json:"property_type,omitempty"`
	BuyerID        *uint         `gorm:"index" json:"buyer_id"`
	Buyer          *Partner      `json:"buyer,omitempty"`
	SalesmanID     *uint         `gorm:"index" json:"salesman_id"`
	Salesman       *User         `json:"salesman,omitempty"`
	Tags           []Tag         `gorm:"many2many:property_tags" json:"tags"`
	Offers         []Offer       `gorm:"constraint:OnDelete:CASCADE" json:"offers,omitempty"`

	// BestOffer is derived from Offers and never stored
	BestOffer float64 `gorm:"-" json:"best_offer"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeTotalArea derives the total area from the living and garden areas.
func (p *Property) ComputeTotalArea() {
	p.TotalArea = p.LivingArea + p.GardenArea
}

// ApplyGardenDefault resets the garden area after the garden flag changed.
func (p *Property) ApplyGardenDefault() {
	if p.Garden {
		p.GardenArea = DefaultGardenArea
	} else {
		p.GardenArea = 0
	}
}

// ComputeBestOffer sets BestOffer to the highest loaded offer price, or 0.
func (p *Property) ComputeBestOffer() {
	best := 0.0
	for i, o := range p.Offers {
		if i == 0 || o.Price > best {
			best = o.Price
		}
	}
	p.BestOffer = best
}

func (p *Property) BeforeSave(tx *gorm.DB) error {
	if p.State == "" {
		p.State = StateNew
	}
	p.ComputeTotalArea()
	return nil
}

// AfterSave keeps the property type mirrored on every offer of the property.
func (p *Property) AfterSave(tx *gorm.DB) error {
	if p.ID == 0 {
		return nil
	}
	return tx.Model(&Offer{}).
		Where("property_id = ?", p.ID).
		UpdateColumn("property_type_id", p.PropertyTypeID).Error
}
