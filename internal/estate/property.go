package estate

import (
	"context"
	"fmt"
	"strings"

	"estate/server/internal/audit"
	"estate/server/internal/geometry"
	"estate/server/internal/models"

	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

type PropertyInput struct {
	Name              string   `json:"name" validate:"required"`
	Description       string   `json:"description"`
	Postcode          string   `json:"postcode"`
	DateAvailability  *string  `json:"date_availability" validate:"omitempty,datetime=2006-01-02"`
	ExpectedPrice     float64  `json:"expected_price"`
	Bedrooms          *int     `json:"bedrooms"`
	LivingArea        int      `json:"living_area"`
	Facades           int      `json:"facades"`
	Garage            bool     `json:"garage"`
	Garden            bool     `json:"garden"`
	GardenArea        *int     `json:"garden_area"`
	GardenOrientation string   `json:"garden_orientation" validate:"omitempty,oneof=north south east west"`
	PropertyTypeID    *uint    `json:"property_type_id"`
	SalesmanID        *uint    `json:"salesman_id"`
	TagIDs            []uint   `json:"tag_ids"`
	Latitude          *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude         *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// PropertyPatch carries the fields of a partial update; nil means unchanged.
// State, buyer and selling price are driven by the lifecycle only.
type PropertyPatch struct {
	Name              *string  `json:"name" validate:"omitnil,min=1"`
	Description       *string  `json:"description"`
	Postcode          *string  `json:"postcode"`
	DateAvailability  *string  `json:"date_availability" validate:"omitempty,datetime=2006-01-02"`
	ExpectedPrice     *float64 `json:"expected_price"`
	Bedrooms          *int     `json:"bedrooms"`
	LivingArea        *int     `json:"living_area"`
	Facades           *int     `json:"facades"`
	Garage            *bool    `json:"garage"`
	Garden            *bool    `json:"garden"`
	GardenArea        *int     `json:"garden_area"`
	GardenOrientation *string  `json:"garden_orientation" validate:"omitempty,oneof=north south east west"`
	PropertyTypeID    *uint    `json:"property_type_id"`
	SalesmanID        *uint    `json:"salesman_id"`
	TagIDs            *[]uint  `json:"tag_ids"`
	Latitude          *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude         *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// normalize trims the name before it is validated and stored.
func (in *PropertyInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (p *PropertyPatch) normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
}

type PropertyFilter struct {
	State          models.PropertyState
	PostcodePrefix string
	PropertyTypeID *uint
	// Bound keeps only listings with coordinates inside it
	Bound *orb.Bound
}

// CreateProperty stores a new listing with its defaults and derived fields.
func (s *Service) CreateProperty(ctx context.Context, in PropertyInput) (*models.Property, []Warning, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, nil, err
	}

	var created *models.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.insertProperty(ctx, tx, in)
		created = p
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithField("property_id", created.ID).Info("Property created")
	p, err := s.GetProperty(ctx, created.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, s.priceWarnings(in.ExpectedPrice), nil
}

func (s *Service) insertProperty(ctx context.Context, tx *gorm.DB, in PropertyInput) (*models.Property, error) {
	p := &models.Property{
		Name:              in.Name,
		Description:       in.Description,
		Postcode:          in.Postcode,
		ExpectedPrice:     in.ExpectedPrice,
		Bedrooms:          models.DefaultBedrooms,
		LivingArea:        in.LivingArea,
		Facades:           in.Facades,
		Garage:            in.Garage,
		Garden:            in.Garden,
		GardenOrientation: models.OrientationNorth,
		State:             models.StateNew,
		PropertyTypeID:    in.PropertyTypeID,
		SalesmanID:        ActorFrom(ctx),
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
	}
	if in.Bedrooms != nil {
		p.Bedrooms = *in.Bedrooms
	}
	if in.GardenOrientation != "" {
		p.GardenOrientation = models.GardenOrientation(in.GardenOrientation)
	}
	if in.SalesmanID != nil {
		p.SalesmanID = in.SalesmanID
	}
	if in.GardenArea != nil {
		p.GardenArea = *in.GardenArea
	} else {
		p.ApplyGardenDefault()
	}

	availability, err := parseDate("date_availability", in.DateAvailability)
	if err != nil {
		return nil, err
	}
	if availability == nil {
		d := models.DateOf(s.now()).AddDate(0, 0, s.availabilityDelay)
		availability = &d
	}
	p.DateAvailability = availability

	if err := s.checkPropertyRefs(tx, p.PropertyTypeID, p.SalesmanID); err != nil {
		return nil, err
	}
	tags, err := loadTags(tx, in.TagIDs)
	if err != nil {
		return nil, err
	}
	p.Tags = tags

	if err := tx.Omit("Tags.*", "Offers", "PropertyType", "Buyer", "Salesman").Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	if err := s.writeAudit(ctx, tx, audit.LogOptions{
		EntityType:  "property",
		EntityID:    p.ID,
		PropertyID:  p.ID,
		Action:      models.AuditActionCreate,
		Description: p.Name,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProperty loads a property with its relations and best offer.
func (s *Service) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	var p models.Property
	err := withPropertyRelations(s.db.WithContext(ctx)).First(&p, id).Error
	if err != nil {
		return nil, notFound(err, "property", id)
	}
	p.ComputeBestOffer()
	return &p, nil
}

// ListProperties returns the listings matching filter, newest first.
func (s *Service) ListProperties(ctx context.Context, filter PropertyFilter) ([]models.Property, error) {
	q := withPropertyRelations(s.db.WithContext(ctx)).Order("id desc")
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.PostcodePrefix != "" {
		q = q.Where("postcode LIKE ?", filter.PostcodePrefix+"%")
	}
	if filter.PropertyTypeID != nil {
		q = q.Where("property_type_id = ?", *filter.PropertyTypeID)
	}
	if filter.Bound != nil {
		q = q.Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	}

	var properties []models.Property
	if err := q.Find(&properties).Error; err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	result := make([]models.Property, 0, len(properties))
	for _, p := range properties {
		if filter.Bound != nil && !geometry.Contains(*filter.Bound, p.Latitude, p.Longitude) {
			continue
		}
		p.ComputeBestOffer()
		result = append(result, p)
	}
	return result, nil
}

// UpdateProperty applies a partial update. Toggling the garden flag without
// an explicit garden area resets the area to its default.
func (s *Service) UpdateProperty(ctx context.Context, id uint, patch PropertyPatch) (*models.Property, []Warning, error) {
	patch.normalize()
	if err := s.validateInput(patch); err != nil {
		return nil, nil, err
	}

	err := s.inPropertyTx(ctx, []uint{id}, func(tx *gorm.DB) error {
		p, err := lockProperty(tx, id)
		if err != nil {
			return err
		}
		if err := applyPropertyPatch(p, patch); err != nil {
			return err
		}
		if err := s.checkPropertyRefs(tx, patch.PropertyTypeID, patch.SalesmanID); err != nil {
			return err
		}
		if err := saveProperty(tx, p); err != nil {
			return err
		}
		if patch.TagIDs != nil {
			tags, err := loadTags(tx, *patch.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(p).Association("Tags").Replace(tags); err != nil {
				return fmt.Errorf("failed to update tags: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var warnings []Warning
	if patch.ExpectedPrice != nil {
		warnings = s.priceWarnings(*patch.ExpectedPrice)
	}
	return p, warnings, nil
}

func applyPropertyPatch(p *models.Property, patch PropertyPatch) error {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Postcode != nil {
		p.Postcode = *patch.Postcode
	}
	if patch.DateAvailability != nil {
		d, err := parseDate("date_availability", patch.DateAvailability)
		if err != nil {
			return err
		}
		p.DateAvailability = d
	}
	if patch.ExpectedPrice != nil {
		p.ExpectedPrice = *patch.ExpectedPrice
	}
	if patch.Bedrooms != nil {
		p.Bedrooms = *patch.Bedrooms
	}
	if patch.LivingArea != nil {
		p.LivingArea = *patch.LivingArea
	}
	if patch.Facades != nil {
		p.Facades = *patch.Facades
	}
	if patch.Garage != nil {
		p.Garage = *patch.Garage
	}
	if patch.Garden != nil && *patch.Garden != p.Garden {
		p.Garden = *patch.Garden
		p.ApplyGardenDefault()
	}
	if patch.GardenArea != nil {
		p.GardenArea = *patch.GardenArea
	}
	if patch.GardenOrientation != nil {
		p.GardenOrientation = models.GardenOrientation(*patch.GardenOrientation)
	}
	if patch.PropertyTypeID != nil {
		p.PropertyTypeID = nullableID(*patch.PropertyTypeID)
	}
	if patch.SalesmanID != nil {
		p.SalesmanID = nullableID(*patch.SalesmanID)
	}
	if patch.Latitude != nil {
		p.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		p.Longitude = patch.Longitude
	}
	return nil
}

// DeleteProperty removes a property together with its offers.
func (s *Service) DeleteProperty(ctx context.Context, id uint) error {
	return s.inPropertyTx(ctx, []uint{id}, func(tx *gorm.DB) error {
		p, err := lockProperty(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.Offer{}).Error; err != nil {
			return fmt.Errorf("failed to delete offers: %w", err)
		}
		if err := tx.Select("Tags").Delete(p).Error; err != nil {
			return fmt.Errorf("failed to delete property: %w", err)
		}
		return s.writeAudit(ctx, tx, audit.LogOptions{
			EntityType:  "property",
			EntityID:    id,
			PropertyID:  id,
			Action:      models.AuditActionDelete,
			Description: p.Name,
		})
	})
}

// DuplicateProperty copies a listing. Sale data, availability, state and
// salesman start over and offers stay with the original.
func (s *Service) DuplicateProperty(ctx context.Context, id uint) (*models.Property, error) {
	src, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}

	tagIDs := make([]uint, 0, len(src.Tags))
	for _, t := range src.Tags {
		tagIDs = append(tagIDs, t.ID)
	}
	bedrooms := src.Bedrooms
	gardenArea := src.GardenArea
	in := PropertyInput{
		Name:              src.Name + " (copy)",
		Description:       src.Description,
		Postcode:          src.Postcode,
		ExpectedPrice:     src.ExpectedPrice,
		Bedrooms:          &bedrooms,
		LivingArea:        src.LivingArea,
		Facades:           src.Facades,
		Garage:            src.Garage,
		Garden:            src.Garden,
		GardenArea:        &gardenArea,
		GardenOrientation: string(src.GardenOrientation),
		PropertyTypeID:    src.PropertyTypeID,
		TagIDs:            tagIDs,
		Latitude:          src.Latitude,
		Longitude:         src.Longitude,
	}

	var created *models.Property
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.insertProperty(ctx, tx, in)
		created = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetProperty(ctx, created.ID)
}

// CancelProperties cancels every given property, or none of them.
func (s *Service) CancelProperties(ctx context.Context, ids ...uint) error {
	return s.transitionAll(ctx, ids, models.StateCanceled)
}

// MarkPropertiesSold marks every given property sold, or none of them.
func (s *Service) MarkPropertiesSold(ctx context.Context, ids ...uint) error {
	return s.transitionAll(ctx, ids, models.StateSold)
}

func (s *Service) transitionAll(ctx context.Context, ids []uint, to models.PropertyState) error {
	ids = uniqueSorted(ids)
	return s.inPropertyTx(ctx, ids, func(tx *gorm.DB) error {
		for _, id := range ids {
			p, err := lockProperty(tx, id)
			if err != nil {
				return err
			}
			if p.State == to {
				continue
			}
			if err := s.setState(ctx, tx, p, to); err != nil {
				return err
			}
			if err := saveProperty(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) priceWarnings(expected float64) []Warning {
	if expected == 0 || expected >= s.lowPriceThreshold {
		return nil
	}
	return []Warning{{
		Field:   "expected_price",
		Message: fmt.Sprintf("expected price %.2f is below %.2f, please check it", expected, s.lowPriceThreshold),
	}}
}

func (s *Service) checkPropertyRefs(tx *gorm.DB, propertyTypeID, salesmanID *uint) error {
	if propertyTypeID != nil && *propertyTypeID != 0 {
		if err := requireRecord(tx, &models.PropertyType{}, *propertyTypeID, "property_type_id"); err != nil {
			return err
		}
	}
	if salesmanID != nil && *salesmanID != 0 {
		if err := requireRecord(tx, &models.User{}, *salesmanID, "salesman_id"); err != nil {
			return err
		}
	}
	return nil
}

func loadTags(tx *gorm.DB, ids []uint) ([]models.Tag, error) {
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, validationErrorf("tag_ids references unknown tags")
	}
	return tags, nil
}

func withPropertyRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Offers", func(db *gorm.DB) *gorm.DB { return db.Order("price desc") }).
		Preload("Offers.Partner").
		Preload("Tags").
		Preload("PropertyType").
		Preload("Buyer").
		Preload("Salesman")
}

// nullableID maps the id 0 to "no reference".
func nullableID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
