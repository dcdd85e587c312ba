package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/auth"
	"estatehub/api/internal/models"
	"estatehub/api/internal/services"
	"estatehub/api/internal/storage"
)

// --- Mocks ---

type MockListingService struct {
	mock.Mock
}

func listingResult(args mock.Arguments) (*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) Create(ctx context.Context, actor auth.Identity, draft models.ListingDraft) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, draft))
}

func (m *MockListingService) Get(ctx context.Context, viewer *auth.Identity, ref string) (*models.Listing, error) {
	return listingResult(m.Called(ctx, viewer, ref))
}

func (m *MockListingService) Search(ctx context.Context, viewer *auth.Identity, filter models.ListingFilter) (*services.ListingPage, error) {
	args := m.Called(ctx, viewer, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListingPage), args.Error(1)
}

func (m *MockListingService) ApplyAction(ctx context.Context, actor auth.Identity, listingID, keyword string, reason *string) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, listingID, keyword, reason))
}

func (m *MockListingService) Edit(ctx context.Context, actor auth.Identity, listingID string, patch models.ListingPatch) (*models.Listing, error) {
	return listingResult(m.Called(ctx, actor, listingID, patch))
}

func (m *MockListingService) Delete(ctx context.Context, actor auth.Identity, listingID string) (services.CascadeReport, error) {
	args := m.Called(ctx, actor, listingID)
	return args.Get(0).(services.CascadeReport), args.Error(1)
}

func (m *MockListingService) ImageUploadURL(ctx context.Context, actor auth.Identity, listingID, filename, contentType string) (*storage.UploadURL, error) {
	args := m.Called(ctx, actor, listingID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadURL), args.Error(1)
}

func (m *MockListingService) CompleteImageUpload(ctx context.Context, actor auth.Identity, listingID, key string) error {
	return m.Called(ctx, actor, listingID, key).Error(0)
}

func (m *MockListingService) AddImage(ctx context.Context, listingID primitive.ObjectID, key string) error {
	return m.Called(ctx, listingID, key).Error(0)
}

func (m *MockListingService) FavoritesOf(ctx context.Context, subjectID primitive.ObjectID) ([]models.Listing, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) Toggle(ctx context.Context, actor auth.Identity, listingID string) (bool, error) {
	args := m.Called(ctx, actor, listingID)
	return args.Bool(0), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*models.User), args.Error(2)
}
