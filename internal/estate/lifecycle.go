package estate

import (
	"context"
	"fmt"

	"estate/server/internal/audit"
	"estate/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// transitions lists the allowed state changes. Sold and canceled are terminal.
var transitions = map[models.PropertyState][]models.PropertyState{
	models.StateNew: {
		models.StateOfferReceived, models.StateOfferAccepted, models.StateSold, models.StateCanceled,
	},
	models.StateOfferReceived: {
		models.StateOfferAccepted, models.StateSold, models.StateCanceled,
	},
	models.StateOfferAccepted: {
		models.StateOfferReceived, models.StateSold, models.StateCanceled,
	},
}

func canTransition(from, to models.PropertyState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// setState is the single place a property's state changes. It leaves
// saving the property to the caller. Moving to the current state is a no-op.
func (s *Service) setState(ctx context.Context, tx *gorm.DB, p *models.Property, to models.PropertyState) error {
	from := p.State
	if from == to {
		return nil
	}
	if !canTransition(from, to) {
		switch {
		case from == models.StateSold && to == models.StateCanceled:
			return domainErrorf("cannot cancel a sold property")
		case from == models.StateCanceled && to == models.StateSold:
			return domainErrorf("cannot sell a canceled property")
		default:
			return domainErrorf("cannot move property %q from %s to %s", p.Name, from, to)
		}
	}

	p.State = to
	s.logger.WithFields(logrus.Fields{
		"property_id": p.ID,
		"from":        from,
		"to":          to,
	}).Info("Property state changed")

	return s.writeAudit(ctx, tx, audit.LogOptions{
		EntityType:  "property",
		EntityID:    p.ID,
		PropertyID:  p.ID,
		Action:      models.AuditActionTransition,
		Field:       "state",
		OldValue:    string(from),
		NewValue:    string(to),
		Description: fmt.Sprintf("%s: %s -> %s", p.Name, from, to),
	})
}

// setOfferStatus stores a new status on the offer and records it.
func (s *Service) setOfferStatus(ctx context.Context, tx *gorm.DB, o *models.Offer, status models.OfferStatus) error {
	from := o.Status
	o.Status = status
	if err := saveOffer(tx, o); err != nil {
		return err
	}
	if from == status {
		return nil
	}
	return s.writeAudit(ctx, tx, audit.LogOptions{
		EntityType: "offer",
		EntityID:   o.ID,
		PropertyID: o.PropertyID,
		Action:     models.AuditActionTransition,
		Field:      "status",
		OldValue:   string(from),
		NewValue:   string(status),
	})
}

// refuseSiblings refuses every offer of the property except keep.
func (s *Service) refuseSiblings(ctx context.Context, tx *gorm.DB, propertyID, keep uint) error {
	var siblings []models.Offer
	if err := tx.Where("property_id = ? AND id <> ?", propertyID, keep).Find(&siblings).Error; err != nil {
		return err
	}
	for i := range siblings {
		if siblings[i].Status == models.OfferRefused {
			continue
		}
		if err := s.setOfferStatus(ctx, tx, &siblings[i], models.OfferRefused); err != nil {
			return err
		}
	}
	return nil
}

// acceptOffer is the only path that makes an offer accepted. The offer must
// already be stored and p must be locked by the caller.
func (s *Service) acceptOffer(ctx context.Context, tx *gorm.DB, o *models.Offer, p *models.Property) error {
	if p.State.Closed() {
		return domainErrorf("cannot accept an offer on a sold or canceled property")
	}

	var acceptedElsewhere int64
	err := tx.Model(&models.Offer{}).
		Where("property_id = ? AND id <> ? AND status = ?", p.ID, o.ID, models.OfferAccepted).
		Count(&acceptedElsewhere).Error
	if err != nil {
		return err
	}
	if acceptedElsewhere > 0 {
		return domainErrorf("only one offer may be accepted")
	}

	if err := s.refuseSiblings(ctx, tx, p.ID, o.ID); err != nil {
		return err
	}
	if err := s.setOfferStatus(ctx, tx, o, models.OfferAccepted); err != nil {
		return err
	}

	buyer := o.PartnerID
	p.BuyerID = &buyer
	p.SellingPrice = o.Price
	if err := s.setState(ctx, tx, p, models.StateOfferAccepted); err != nil {
		return err
	}
	return saveProperty(tx, p)
}

// syncOffers re-derives the property state from its offers. It runs after
// every change to the offer collection of p.
func (s *Service) syncOffers(ctx context.Context, tx *gorm.DB, p *models.Property) error {
	var offers []models.Offer
	if err := tx.Where("property_id = ?", p.ID).Order("id asc").Find(&offers).Error; err != nil {
		return err
	}

	var accepted []models.Offer
	for _, o := range offers {
		if o.Status == models.OfferAccepted {
			accepted = append(accepted, o)
		}
	}
	if len(accepted) > 1 {
		return domainErrorf("only one offer may be accepted")
	}
	if p.State.Closed() {
		return nil
	}
	if len(offers) == 0 && p.State != models.StateOfferAccepted {
		return nil
	}

	target := models.StateOfferReceived
	if len(accepted) == 1 {
		a := accepted[0]
		if err := s.refuseSiblings(ctx, tx, p.ID, a.ID); err != nil {
			return err
		}
		buyer := a.PartnerID
		p.BuyerID = &buyer
		p.SellingPrice = a.Price
		target = models.StateOfferAccepted
	} else if p.State == models.StateOfferAccepted {
		// the accepted offer is gone
		p.BuyerID = nil
		p.SellingPrice = 0
	}

	if err := s.setState(ctx, tx, p, target); err != nil {
		return err
	}
	return saveProperty(tx, p)
}
