package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/utils"
)

func setupTestDBProperty(t *testing.T, dbName string) (*mongo.Database, IPropertyService, IUserService) {
	db := utils.SetupTestDB(t, dbName, "properties", "users")
	userSvc := NewUserService(db)
	propertySvc := NewPropertyService(db, userSvc)
	return db, propertySvc, userSvc
}

func registerLandlord(t *testing.T, svc IUserService, email string) models.Actor {
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    "secret123",
		FullName:    "Otieno Makau",
		Phone:       "+254722000000",
		Role:        models.RoleLandlord,
		CompanyName: "Makau Homes",
	})
	require.NoError(t, err)
	return models.Actor{ID: user.ID, Role: user.Role}
}

func validPropertyInput() CreatePropertyInput {
	return CreatePropertyInput{
		Title:        "Bedsitter near campus",
		Description:  "Water included, secure compound",
		PropertyType: models.PropertyTypeBedsitter,
		Price:        12000,
		Location:     models.PropertyLocation{Address: "Juja Rd", City: "Nairobi"},
		Specifications: models.Specifications{
			Bedrooms:  1,
			Bathrooms: 1,
		},
		ContactInfo: models.ContactInfo{Phone: "+254722000000"},
	}
}

func TestPropertyService_CRUD(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_crud")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "crud@example.com")

	property, err := svc.Create(ctx, landlord, validPropertyInput())
	require.NoError(t, err)
	assert.False(t, property.ID.IsZero())
	assert.Equal(t, landlord.ID, property.LandlordID)
	assert.Equal(t, models.PropertyStatusActive, property.Status)
	assert.Equal(t, "monthly", property.PriceFrequency)
	assert.True(t, property.Availability.IsAvailable)

	// Listing counter moved.
	owner, err := userSvc.FindByID(ctx, landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owner.TotalListings)

	// Tenants cannot create listings.
	tenant := models.Actor{ID: utils.NewSixID(), Role: models.RoleTenant}
	_, err = svc.Create(ctx, tenant, validPropertyInput())
	assert.ErrorIs(t, err, ErrForbidden)

	// Update by owner.
	updated, err := svc.Update(ctx, landlord, property.ID, map[string]interface{}{
		"title": "Bedsitter near campus, refurbished",
		"price": 13500.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bedsitter near campus, refurbished", updated.Title)
	assert.Equal(t, 13500.0, updated.Price)

	// Unknown update fields are rejected.
	_, err = svc.Update(ctx, landlord, property.ID, map[string]interface{}{"landlord_id": utils.NewSixID()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Update by a different landlord is refused.
	other := registerLandlord(t, userSvc, "other@example.com")
	_, err = svc.Update(ctx, other, property.ID, map[string]interface{}{"price": 1.0})
	assert.ErrorIs(t, err, ErrForbidden)

	// Delete winds the counter back.
	require.NoError(t, svc.Delete(ctx, landlord, property.ID))
	_, err = svc.FindByID(ctx, property.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	owner, err = userSvc.FindByID(ctx, landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, owner.TotalListings)
}

func TestPropertyService_CreateValidation(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_validation")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "validation@example.com")

	cases := []struct {
		name   string
		mutate func(*CreatePropertyInput)
	}{
		{"missing title", func(in *CreatePropertyInput) { in.Title = " " }},
		{"missing description", func(in *CreatePropertyInput) { in.Description = "" }},
		{"bad type", func(in *CreatePropertyInput) { in.PropertyType = "castle" }},
		{"negative price", func(in *CreatePropertyInput) { in.Price = -1 }},
		{"missing city", func(in *CreatePropertyInput) { in.Location.City = "" }},
		{"missing phone", func(in *CreatePropertyInput) { in.ContactInfo.Phone = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validPropertyInput()
			tc.mutate(&in)
			_, err := svc.Create(ctx, landlord, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestPropertyService_Get(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_get")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "get@example.com")
	tenant := models.Actor{ID: utils.NewSixID(), Role: models.RoleTenant}

	property, err := svc.Create(ctx, landlord, validPropertyInput())
	require.NoError(t, err)

	// Each read bumps the view counter.
	got, err := svc.Get(ctx, tenant, property.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)
	got, err = svc.Get(ctx, tenant, property.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)

	// Unavailable properties are hidden from tenants but not the owner.
	_, err = svc.Update(ctx, landlord, property.ID, map[string]interface{}{
		"availability": models.Availability{IsAvailable: false},
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, tenant, property.ID)
	assert.ErrorIs(t, err, ErrPropertyUnavailable)
	_, err = svc.Get(ctx, landlord, property.ID)
	assert.NoError(t, err)
}

func TestPropertyService_List(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_list")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "list@example.com")
	tenant := models.Actor{ID: utils.NewSixID(), Role: models.RoleTenant}

	for i := 0; i < 3; i++ {
		in := validPropertyInput()
		in.Title = fmt.Sprintf("Bedsitter %d", i)
		in.Price = float64(10000 + i*5000)
		_, err := svc.Create(ctx, landlord, in)
		require.NoError(t, err)
	}
	in := validPropertyInput()
	in.Title = "Hidden flat"
	in.Availability = &models.Availability{IsAvailable: false}
	_, err := svc.Create(ctx, landlord, in)
	require.NoError(t, err)

	// Tenants only see available listings.
	visible, total, err := svc.List(ctx, tenant, PropertyFilter{}, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, visible, 3)

	// The owner sees all of theirs.
	mine, total, err := svc.List(ctx, landlord, PropertyFilter{}, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, mine, 4)

	// Price range filter.
	cheap, total, err := svc.List(ctx, tenant, PropertyFilter{MaxPrice: 14000}, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 10000.0, cheap[0].Price)

	// Sort ascending by price.
	sorted, _, err := svc.List(ctx, tenant, PropertyFilter{}, 1, 10, "price")
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	assert.True(t, sorted[0].Price <= sorted[1].Price)

	// City filter is case-insensitive.
	city, total, err := svc.List(ctx, tenant, PropertyFilter{City: "nairobi"}, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.NotEmpty(t, city)
}

func TestPropertyService_Photos(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_photos")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "photos@example.com")

	property, err := svc.Create(ctx, landlord, validPropertyInput())
	require.NoError(t, err)

	first, err := svc.AddPhoto(ctx, landlord, property.ID, models.PropertyPhoto{
		URL: "https://cdn.example.com/raw/p1.jpg",
		Key: "raw/p1.jpg",
	})
	require.NoError(t, err)
	require.Len(t, first.Photos, 1)
	assert.True(t, first.Photos[0].IsPrimary)

	second, err := svc.AddPhoto(ctx, landlord, property.ID, models.PropertyPhoto{
		URL: "https://cdn.example.com/raw/p2.jpg",
		Key: "raw/p2.jpg",
	})
	require.NoError(t, err)
	require.Len(t, second.Photos, 2)
	assert.False(t, second.Photos[1].IsPrimary)

	// Processed URL replaces the raw upload URL by key.
	err = svc.ReplacePhotoURL(ctx, property.ID, "raw/p1.jpg", "https://cdn.example.com/photos/p1.jpg")
	require.NoError(t, err)
	reloaded, err := svc.FindByID(ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/photos/p1.jpg", reloaded.Photos[0].URL)

	err = svc.ReplacePhotoURL(ctx, property.ID, "raw/missing.jpg", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyService_SavedProperties(t *testing.T) {
	_, svc, userSvc := setupTestDBProperty(t, "testdb_property_saved")
	ctx := context.Background()
	landlord := registerLandlord(t, userSvc, "saved@example.com")

	tenantUser, err := userSvc.Register(ctx, RegisterInput{
		Email:    "tenant@example.com",
		Password: "secret123",
		FullName: "Wanjiku Kamau",
		Phone:    "+254711000000",
		Role:     models.RoleTenant,
	})
	require.NoError(t, err)
	tenant := models.Actor{ID: tenantUser.ID, Role: tenantUser.Role}

	available, err := svc.Create(ctx, landlord, validPropertyInput())
	require.NoError(t, err)
	in := validPropertyInput()
	in.Availability = &models.Availability{IsAvailable: false}
	unavailable, err := svc.Create(ctx, landlord, in)
	require.NoError(t, err)

	require.NoError(t, userSvc.SaveProperty(ctx, tenant, available.ID))
	require.NoError(t, userSvc.SaveProperty(ctx, tenant, unavailable.ID))

	// Only still-available saves come back.
	saved, err := svc.SavedProperties(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, available.ID, saved[0].ID)

	_, err = svc.SavedProperties(ctx, landlord)
	assert.ErrorIs(t, err, ErrForbidden)
}
