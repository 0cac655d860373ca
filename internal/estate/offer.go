package estate

import (
	"context"
	"errors"
	"fmt"

	"estate/server/internal/audit"
	"estate/server/internal/models"

	"gorm.io/gorm"
)

var errOfferMoved = errors.New("offer moved to another property")

const maxOfferLockAttempts = 3

type OfferInput struct {
	Price        *float64 `json:"price" validate:"required"`
	PartnerID    *uint    `json:"partner_id" validate:"required"`
	PropertyID   *uint    `json:"property_id" validate:"required"`
	Validity     *int     `json:"validity"`
	DateDeadline *string  `json:"date_deadline" validate:"omitempty,datetime=2006-01-02"`
	Status       string   `json:"status" validate:"omitempty,oneof=accepted refused"`
}

// OfferPatch carries the fields of a partial offer update; nil means unchanged.
type OfferPatch struct {
	Price        *float64 `json:"price"`
	PartnerID    *uint    `json:"partner_id"`
	PropertyID   *uint    `json:"property_id"`
	Validity     *int     `json:"validity"`
	DateDeadline *string  `json:"date_deadline" validate:"omitempty,datetime=2006-01-02"`
	Status       *string  `json:"status" validate:"omitempty,oneof=accepted refused"`
}

// CreateOffer stores a bid. Offers on sold or canceled properties are stored
// refused whatever status was requested; an accepted status goes through the
// same checks as AcceptOffer.
func (s *Service) CreateOffer(ctx context.Context, in OfferInput) (*models.Offer, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	deadline, err := parseDate("date_deadline", in.DateDeadline)
	if err != nil {
		return nil, err
	}

	var created models.Offer
	err = s.inPropertyTx(ctx, []uint{*in.PropertyID}, func(tx *gorm.DB) error {
		p, err := lockProperty(tx, *in.PropertyID)
		if err != nil {
			if IsNotFound(err) {
				return validationErrorf("property_id references unknown record %d", *in.PropertyID)
			}
			return err
		}
		if err := requireRecord(tx, &models.Partner{}, *in.PartnerID, "partner_id"); err != nil {
			return err
		}

		status := models.OfferStatus(in.Status)
		if p.State.Closed() {
			status = models.OfferRefused
		}

		created = models.Offer{
			Price:          *in.Price,
			PartnerID:      *in.PartnerID,
			PropertyID:     p.ID,
			Validity:       models.DefaultValidityDays,
			PropertyTypeID: p.PropertyTypeID,
		}
		if in.Validity != nil {
			created.Validity = *in.Validity
		}
		if status != models.OfferAccepted {
			created.Status = status
		}
		if err := tx.Omit("Partner").Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		if deadline != nil {
			created.SetDeadline(deadline)
			if err := saveOffer(tx, &created); err != nil {
				return err
			}
		}
		if err := s.writeAudit(ctx, tx, audit.LogOptions{
			EntityType:  "offer",
			EntityID:    created.ID,
			PropertyID:  p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("offer of %.2f", created.Price),
		}); err != nil {
			return err
		}

		if status == models.OfferAccepted {
			if err := s.acceptOffer(ctx, tx, &created, p); err != nil {
				return err
			}
		}
		return s.syncOffers(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("offer_id", created.ID).WithField("property_id", created.PropertyID).Info("Offer created")
	return s.GetOffer(ctx, created.ID)
}

// GetOffer loads an offer with its bidder.
func (s *Service) GetOffer(ctx context.Context, id uint) (*models.Offer, error) {
	var o models.Offer
	if err := s.db.WithContext(ctx).Preload("Partner").First(&o, id).Error; err != nil {
		return nil, notFound(err, "offer", id)
	}
	return &o, nil
}

// ListOffers returns the offers of a property, best price first.
func (s *Service) ListOffers(ctx context.Context, propertyID uint) ([]models.Offer, error) {
	if _, err := s.findOfferProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	var offers []models.Offer
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Where("property_id = ?", propertyID).
		Order("price desc").
		Find(&offers).Error
	return offers, err
}

func (s *Service) findOfferProperty(ctx context.Context, propertyID uint) (*models.Property, error) {
	var p models.Property
	if err := s.db.WithContext(ctx).First(&p, propertyID).Error; err != nil {
		return nil, notFound(err, "property", propertyID)
	}
	return &p, nil
}

// UpdateOffer applies a partial update. The refusal rule is evaluated
// against the property the offer references after the update. A deadline
// takes precedence over a validity sent in the same patch.
func (s *Service) UpdateOffer(ctx context.Context, id uint, patch OfferPatch) (*models.Offer, error) {
	if err := s.validateInput(patch); err != nil {
		return nil, err
	}
	deadline, err := parseDate("date_deadline", patch.DateDeadline)
	if err != nil {
		return nil, err
	}

	current, err := s.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	var extraIDs []uint
	if patch.PropertyID != nil {
		extraIDs = append(extraIDs, *patch.PropertyID)
	}

	err = s.inOfferTx(ctx, id, current.PropertyID, extraIDs, func(tx *gorm.DB, o *models.Offer) error {
		previousPropertyID := o.PropertyID

		targetID := o.PropertyID
		if patch.PropertyID != nil {
			targetID = *patch.PropertyID
		}
		target, err := lockProperty(tx, targetID)
		if err != nil {
			if IsNotFound(err) {
				return validationErrorf("property_id references unknown record %d", targetID)
			}
			return err
		}

		if patch.Price != nil {
			o.Price = *patch.Price
		}
		if patch.PartnerID != nil {
			if err := requireRecord(tx, &models.Partner{}, *patch.PartnerID, "partner_id"); err != nil {
				return err
			}
			o.PartnerID = *patch.PartnerID
		}
		if patch.Validity != nil {
			o.Validity = *patch.Validity
		}
		if patch.DateDeadline != nil {
			o.SetDeadline(deadline)
		}
		o.PropertyID = target.ID
		o.PropertyTypeID = target.PropertyTypeID

		status := o.Status
		if patch.Status != nil {
			status = models.OfferStatus(*patch.Status)
		}
		if target.State.Closed() {
			status = models.OfferRefused
		}
		moved := previousPropertyID != target.ID
		accept := status == models.OfferAccepted && (o.Status != models.OfferAccepted || moved)
		if accept {
			// acceptance is recorded by acceptOffer
			status = o.Status
			if moved {
				status = models.OfferUnset
			}
		}
		if err := s.setOfferStatus(ctx, tx, o, status); err != nil {
			return err
		}
		if accept {
			if err := s.acceptOffer(ctx, tx, o, target); err != nil {
				return err
			}
		}

		if err := s.syncOffers(ctx, tx, target); err != nil {
			return err
		}
		if moved {
			previous, err := lockProperty(tx, previousPropertyID)
			if err != nil {
				return err
			}
			return s.syncOffers(ctx, tx, previous)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(ctx, id)
}

// AcceptOffer accepts the offer, refuses every other offer of the property
// and records the buyer and selling price on the property.
func (s *Service) AcceptOffer(ctx context.Context, id uint) (*models.Offer, error) {
	current, err := s.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.inOfferTx(ctx, id, current.PropertyID, nil, func(tx *gorm.DB, o *models.Offer) error {
		p, err := lockProperty(tx, o.PropertyID)
		if err != nil {
			return err
		}
		return s.acceptOffer(ctx, tx, o, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("offer_id", id).Info("Offer accepted")
	return s.GetOffer(ctx, id)
}

// DeleteOffer removes an offer and re-derives its property's state.
func (s *Service) DeleteOffer(ctx context.Context, id uint) error {
	current, err := s.GetOffer(ctx, id)
	if err != nil {
		return err
	}

	return s.inOfferTx(ctx, id, current.PropertyID, nil, func(tx *gorm.DB, o *models.Offer) error {
		p, err := lockProperty(tx, o.PropertyID)
		if err != nil {
			return err
		}
		if err := tx.Delete(o).Error; err != nil {
			return fmt.Errorf("failed to delete offer: %w", err)
		}
		if err := s.writeAudit(ctx, tx, audit.LogOptions{
			EntityType: "offer",
			EntityID:   o.ID,
			PropertyID: p.ID,
			Action:     models.AuditActionDelete,
		}); err != nil {
			return err
		}
		return s.syncOffers(ctx, tx, p)
	})
}

// inOfferTx runs fn with the offer loaded while the property owning it is
// locked. owner is the property the caller last saw; when the offer has moved
// since, the lock is retaken on its new property.
func (s *Service) inOfferTx(ctx context.Context, id, owner uint, extraIDs []uint, fn func(tx *gorm.DB, o *models.Offer) error) error {
	for attempt := 1; ; attempt++ {
		lockIDs := append([]uint{owner}, extraIDs...)
		err := s.inPropertyTx(ctx, lockIDs, func(tx *gorm.DB) error {
			var o models.Offer
			if err := tx.First(&o, id).Error; err != nil {
				return notFound(err, "offer", id)
			}
			if o.PropertyID != owner {
				owner = o.PropertyID
				return errOfferMoved
			}
			return fn(tx, &o)
		})
		if !errors.Is(err, errOfferMoved) {
			return err
		}
		if attempt >= maxOfferLockAttempts {
			return fmt.Errorf("offer %d: %w", id, err)
		}
		s.logger.WithField("offer_id", id).WithField("property_id", owner).Debug("Offer moved while locking, retrying")
	}
}
