package estate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"estate/server/config"
	"estate/server/internal/audit"
	"estate/server/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// Service implements the property and offer lifecycles on top of gorm.
type Service struct {
	db       *gorm.DB
	logger   *logrus.Logger
	validate *validator.Validate
	locks    *propertyLocks
	now      func() time.Time

	lowPriceThreshold float64
	availabilityDelay int
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Service{
		db:                db,
		logger:            logger,
		validate:          validate,
		locks:             newPropertyLocks(),
		now:               time.Now,
		lowPriceThreshold: cfg.Estate.LowPriceThreshold,
		availabilityDelay: cfg.Estate.AvailabilityDelayDays,
	}
}

type actorKey struct{}

// WithActor attaches the id of the acting user to ctx.
func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user attached to ctx, if any.
func ActorFrom(ctx context.Context) *uint {
	if id, ok := ctx.Value(actorKey{}).(uint); ok && id != 0 {
		return &id
	}
	return nil
}

func (s *Service) validateInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must not be blank", fe.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return &ValidationError{Message: strings.Join(msgs, "; ")}
}

// inPropertyTx runs fn in one transaction while holding the write locks of
// the given properties.
func (s *Service) inPropertyTx(ctx context.Context, propertyIDs []uint, fn func(tx *gorm.DB) error) error {
	unlock := s.locks.lock(propertyIDs...)
	defer unlock()
	return s.db.WithContext(ctx).Transaction(fn)
}

// lockProperty loads a property for update. The row lock is a no-op on sqlite,
// where the database serializes writers itself.
func lockProperty(tx *gorm.DB, id uint) (*models.Property, error) {
	var p models.Property
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, notFound(err, "property", id)
	}
	return &p, nil
}

func saveProperty(tx *gorm.DB, p *models.Property) error {
	if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save property %d: %w", p.ID, err)
	}
	return nil
}

func saveOffer(tx *gorm.DB, o *models.Offer) error {
	if err := tx.Omit(clause.Associations).Save(o).Error; err != nil {
		return fmt.Errorf("failed to save offer %d: %w", o.ID, err)
	}
	return nil
}

// requireRecord turns a dangling reference into a ValidationError.
func requireRecord(tx *gorm.DB, model any, id uint, field string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return validationErrorf("%s references unknown record %d", field, id)
	}
	return nil
}

func notFound(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return err
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, validationErrorf("%s must be a date (YYYY-MM-DD)", field)
	}
	return &t, nil
}

func (s *Service) writeAudit(ctx context.Context, tx *gorm.DB, opts audit.LogOptions) error {
	opts.UserID = ActorFrom(ctx)
	return audit.WriteLog(tx, opts)
}

// PropertyHistory returns the audit trail of a property and its offers.
func (s *Service) PropertyHistory(ctx context.Context, propertyID uint) ([]models.AuditLog, error) {
	return audit.PropertyHistory(s.db.WithContext(ctx), propertyID)
}
