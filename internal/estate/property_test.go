package estate

import (
	"context"
	"testing"
	"time"

	"estate/server/config"
	"estate/server/internal/database"
	"estate/server/internal/models"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, database.MigrateSchema(db))
	t.Cleanup(func() { database.Close(db) })

	cfg := &config.Config{}
	cfg.Estate.LowPriceThreshold = 10000
	cfg.Estate.AvailabilityDelayDays = 90

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewService(db, cfg, logger), db
}

func ptr[T any](v T) *T {
	return &v
}

func createProperty(t *testing.T, s *Service, in PropertyInput) *models.Property {
	t.Helper()
	p, _, err := s.CreateProperty(context.Background(), in)
	require.NoError(t, err)
	return p
}

func createPartner(t *testing.T, s *Service, name string) *models.Partner {
	t.Helper()
	p, err := s.CreatePartner(context.Background(), PartnerInput{Name: name})
	require.NoError(t, err)
	return p
}

func setState(t *testing.T, db *gorm.DB, id uint, state models.PropertyState) {
	t.Helper()
	require.NoError(t, db.Model(&models.Property{}).Where("id = ?", id).UpdateColumn("state", state).Error)
}

func TestCreatePropertyDefaults(t *testing.T) {
	s, _ := setupTestService(t)
	fixed := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	p := createProperty(t, s, PropertyInput{Name: "Villa", LivingArea: 100})

	assert.Equal(t, models.StateNew, p.State)
	assert.Equal(t, models.DefaultBedrooms, p.Bedrooms)
	assert.Equal(t, models.OrientationNorth, p.GardenOrientation)
	assert.Equal(t, 0, p.GardenArea)
	assert.Equal(t, 100, p.TotalArea)
	assert.Equal(t, 0.0, p.BestOffer)
	require.NotNil(t, p.DateAvailability)
	assert.Equal(t, time.Date(2027, 1, 14, 0, 0, 0, 0, time.UTC), p.DateAvailability.UTC())
}

func TestCreatePropertyWithGarden(t *testing.T) {
	s, _ := setupTestService(t)

	p := createProperty(t, s, PropertyInput{Name: "Cottage", LivingArea: 60, Garden: true})
	assert.Equal(t, models.DefaultGardenArea, p.GardenArea)
	assert.Equal(t, 70, p.TotalArea)

	explicit := createProperty(t, s, PropertyInput{Name: "Farm", LivingArea: 60, Garden: true, GardenArea: ptr(400)})
	assert.Equal(t, 400, explicit.GardenArea)
	assert.Equal(t, 460, explicit.TotalArea)
}

func TestCreatePropertySalesmanDefaultsToActor(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	user, err := s.CreateUser(ctx, UserInput{Login: "agent", Name: "Agent"})
	require.NoError(t, err)

	p, _, err := s.CreateProperty(WithActor(ctx, user.ID), PropertyInput{Name: "Flat"})
	require.NoError(t, err)
	require.NotNil(t, p.SalesmanID)
	assert.Equal(t, user.ID, *p.SalesmanID)
	require.NotNil(t, p.Salesman)
	assert.Equal(t, "agent", p.Salesman.Login)
}

func TestCreatePropertyValidation(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	_, _, err := s.CreateProperty(ctx, PropertyInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name is required")

	_, _, err = s.CreateProperty(ctx, PropertyInput{Name: "X", GardenOrientation: "up"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "garden_orientation")

	_, _, err = s.CreateProperty(ctx, PropertyInput{Name: "X", PropertyTypeID: ptr(uint(99))})
	require.ErrorAs(t, err, &verr)

	_, _, err = s.CreateProperty(ctx, PropertyInput{Name: "X", TagIDs: []uint{42}})
	require.ErrorAs(t, err, &verr)

	_, _, err = s.CreateProperty(ctx, PropertyInput{Name: "   "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name is required")

	err = s.ImportProperties(ctx, []PropertyInput{{Name: "Barn"}, {Name: "\t"}})
	require.ErrorAs(t, err, &verr)

	var count int64
	require.NoError(t, s.db.Model(&models.Property{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdatePropertyRejectsBlankName(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	p := createProperty(t, s, PropertyInput{Name: "Cottage"})

	_, _, err := s.UpdateProperty(ctx, p.ID, PropertyPatch{Name: ptr("   ")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name must not be blank")

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cottage", got.Name)

	updated, _, err := s.UpdateProperty(ctx, p.ID, PropertyPatch{Name: ptr("  Cottage by the lake ")})
	require.NoError(t, err)
	assert.Equal(t, "Cottage by the lake", updated.Name)
}

func TestLowExpectedPriceWarning(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	p, warnings, err := s.CreateProperty(ctx, PropertyInput{Name: "Shed", ExpectedPrice: 5000})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "expected_price", warnings[0].Field)
	assert.Equal(t, 5000.0, p.ExpectedPrice)

	_, warnings, err = s.CreateProperty(ctx, PropertyInput{Name: "House", ExpectedPrice: 250000})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	_, warnings, err = s.CreateProperty(ctx, PropertyInput{Name: "Unpriced"})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	_, warnings, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{ExpectedPrice: ptr(9999.0)})
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	_, warnings, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{Name: ptr("Big shed")})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestUpdatePropertyGardenToggle(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	p := createProperty(t, s, PropertyInput{Name: "Villa", LivingArea: 100})
	assert.Equal(t, 100, p.TotalArea)

	p, _, err := s.UpdateProperty(ctx, p.ID, PropertyPatch{Garden: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 10, p.GardenArea)
	assert.Equal(t, 110, p.TotalArea)

	// the default stays editable
	p, _, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{GardenArea: ptr(35)})
	require.NoError(t, err)
	assert.Equal(t, 135, p.TotalArea)

	p, _, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{LivingArea: ptr(80)})
	require.NoError(t, err)
	assert.Equal(t, 115, p.TotalArea)

	p, _, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{Garden: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 0, p.GardenArea)
	assert.Equal(t, 80, p.TotalArea)
}

func TestUpdatePropertyTags(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	cozy, err := s.CreateTag(ctx, NamedInput{Name: "cozy"})
	require.NoError(t, err)
	renovated, err := s.CreateTag(ctx, NamedInput{Name: "renovated"})
	require.NoError(t, err)

	p := createProperty(t, s, PropertyInput{Name: "Flat", TagIDs: []uint{cozy.ID}})
	require.Len(t, p.Tags, 1)

	p, _, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{TagIDs: &[]uint{cozy.ID, renovated.ID}})
	require.NoError(t, err)
	assert.Len(t, p.Tags, 2)

	p, _, err = s.UpdateProperty(ctx, p.ID, PropertyPatch{TagIDs: &[]uint{}})
	require.NoError(t, err)
	assert.Empty(t, p.Tags)
}

func TestUpdatePropertyNotFound(t *testing.T) {
	s, _ := setupTestService(t)
	_, _, err := s.UpdateProperty(context.Background(), 404, PropertyPatch{Name: ptr("x")})
	assert.True(t, IsNotFound(err))
}

func TestCancelProperty(t *testing.T) {
	s, db := setupTestService(t)
	ctx := context.Background()
	p := createProperty(t, s, PropertyInput{Name: "Villa"})

	require.NoError(t, s.CancelProperties(ctx, p.ID))
	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCanceled, got.State)

	// idempotent
	require.NoError(t, s.CancelProperties(ctx, p.ID))

	sold := createProperty(t, s, PropertyInput{Name: "Sold villa"})
	setState(t, db, sold.ID, models.StateSold)
	err = s.CancelProperties(ctx, sold.ID)
	require.Error(t, err)
	assert.True(t, IsDomainError(err))
	assert.Contains(t, err.Error(), "cannot cancel a sold property")

	got, err = s.GetProperty(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSold, got.State)
}

func TestCancelPropertiesIsAllOrNothing(t *testing.T) {
	s, db := setupTestService(t)
	ctx := context.Background()
	open := createProperty(t, s, PropertyInput{Name: "Open"})
	sold := createProperty(t, s, PropertyInput{Name: "Sold"})
	setState(t, db, sold.ID, models.StateSold)

	err := s.CancelProperties(ctx, open.ID, sold.ID)
	require.True(t, IsDomainError(err))

	got, err := s.GetProperty(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNew, got.State)
}

func TestMarkPropertySold(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	p := createProperty(t, s, PropertyInput{Name: "Villa"})

	require.NoError(t, s.MarkPropertiesSold(ctx, p.ID))
	require.NoError(t, s.MarkPropertiesSold(ctx, p.ID))
	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSold, got.State)

	canceled := createProperty(t, s, PropertyInput{Name: "Canceled"})
	require.NoError(t, s.CancelProperties(ctx, canceled.ID))
	err = s.MarkPropertiesSold(ctx, canceled.ID)
	require.True(t, IsDomainError(err))

	got, err = s.GetProperty(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCanceled, got.State)
}

func TestTransitionsAreAudited(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	p := createProperty(t, s, PropertyInput{Name: "Villa"})
	require.NoError(t, s.MarkPropertiesSold(ctx, p.ID))

	history, err := s.PropertyHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.AuditActionCreate, history[0].Action)
	assert.Equal(t, "new", history[1].OldValue)
	assert.Equal(t, "sold", history[1].NewValue)
}

func TestDuplicateProperty(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	tag, err := s.CreateTag(ctx, NamedInput{Name: "sea view"})
	require.NoError(t, err)
	buyer := createPartner(t, s, "Buyer")

	src := createProperty(t, s, PropertyInput{
		Name:          "Beach house",
		ExpectedPrice: 300000,
		LivingArea:    90,
		Garden:        true,
		TagIDs:        []uint{tag.ID},
	})
	offer, err := s.CreateOffer(ctx, OfferInput{Price: ptr(310000.0), PartnerID: &buyer.ID, PropertyID: &src.ID})
	require.NoError(t, err)
	_, err = s.AcceptOffer(ctx, offer.ID)
	require.NoError(t, err)

	dup, err := s.DuplicateProperty(ctx, src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Beach house (copy)", dup.Name)
	assert.Equal(t, models.StateNew, dup.State)
	assert.Equal(t, 0.0, dup.SellingPrice)
	assert.Nil(t, dup.BuyerID)
	assert.Empty(t, dup.Offers)
	assert.Equal(t, 100, dup.TotalArea)
	require.Len(t, dup.Tags, 1)
	assert.Equal(t, "sea view", dup.Tags[0].Name)
}

func TestDeleteProperty(t *testing.T) {
	s, db := setupTestService(t)
	ctx := context.Background()
	partner := createPartner(t, s, "Bidder")
	p := createProperty(t, s, PropertyInput{Name: "Villa"})
	_, err := s.CreateOffer(ctx, OfferInput{Price: ptr(1000.0), PartnerID: &partner.ID, PropertyID: &p.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProperty(ctx, p.ID))
	_, err = s.GetProperty(ctx, p.ID)
	assert.True(t, IsNotFound(err))

	var count int64
	db.Model(&models.Offer{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestListProperties(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()
	house, err := s.CreatePropertyType(ctx, NamedInput{Name: "House"})
	require.NoError(t, err)

	createProperty(t, s, PropertyInput{Name: "A", Postcode: "1012AB", Latitude: ptr(52.37), Longitude: ptr(4.9), PropertyTypeID: &house.ID})
	createProperty(t, s, PropertyInput{Name: "B", Postcode: "3011CD", Latitude: ptr(51.92), Longitude: ptr(4.48)})
	c := createProperty(t, s, PropertyInput{Name: "C", Postcode: "1013EF"})
	require.NoError(t, s.CancelProperties(ctx, c.ID))

	all, err := s.ListProperties(ctx, PropertyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byPostcode, err := s.ListProperties(ctx, PropertyFilter{PostcodePrefix: "101"})
	require.NoError(t, err)
	assert.Len(t, byPostcode, 2)

	byState, err := s.ListProperties(ctx, PropertyFilter{State: models.StateCanceled})
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, "C", byState[0].Name)

	byType, err := s.ListProperties(ctx, PropertyFilter{PropertyTypeID: &house.ID})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "A", byType[0].Name)

	amsterdam := orb.Bound{Min: orb.Point{4.7, 52.2}, Max: orb.Point{5.1, 52.5}}
	inBound, err := s.ListProperties(ctx, PropertyFilter{Bound: &amsterdam})
	require.NoError(t, err)
	require.Len(t, inBound, 1)
	assert.Equal(t, "A", inBound[0].Name)
}

func TestImportProperties(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	err := s.ImportProperties(ctx, []PropertyInput{
		{Name: "Imported 1", LivingArea: 50, Garden: true},
		{Name: "Imported 2", LivingArea: 75},
	})
	require.NoError(t, err)

	all, err := s.ListProperties(ctx, PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 75, all[0].TotalArea)
	assert.Equal(t, 60, all[1].TotalArea)

	err = s.ImportProperties(ctx, []PropertyInput{{Name: "Valid"}, {}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	all, err = s.ListProperties(ctx, PropertyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecordNamesAreUnique(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	_, err := s.CreateTag(ctx, NamedInput{Name: "garden"})
	require.NoError(t, err)
	_, err = s.CreateTag(ctx, NamedInput{Name: " garden "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "already exists")

	_, err = s.CreateTag(ctx, NamedInput{Name: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name is required")

	_, err = s.CreatePartner(ctx, PartnerInput{Name: " "})
	require.ErrorAs(t, err, &verr)

	_, err = s.CreateUser(ctx, UserInput{Login: "agent", Name: "A"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, UserInput{Login: "agent", Name: "B"})
	require.ErrorAs(t, err, &verr)

	u, err := s.GetUserByLogin(ctx, "agent")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)

	_, err = s.GetUserByLogin(ctx, "ghost")
	assert.True(t, IsNotFound(err))
}
