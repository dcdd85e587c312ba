package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/models"
)

func TestToListing(t *testing.T) {
	approvedAt := time.Date(2024, 3, 2, 10, 30, 0, 0, time.FixedZone("WAT", 3600))
	approver := primitive.NewObjectID()
	l := models.Listing{
		ID:         primitive.NewObjectID(),
		OwnerID:    primitive.NewObjectID(),
		Status:     models.StatusApproved,
		ApprovedAt: &approvedAt,
		ApprovedBy: &approver,
		Title:      "Terrace",
		CreatedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	out := ToListing(&l)

	assert.Equal(t, l.ID.Hex(), out.ID)
	assert.Equal(t, l.OwnerID.Hex(), out.OwnerID)
	assert.Equal(t, "approved", out.Status)
	require.NotNil(t, out.ApprovedAt)
	assert.Equal(t, "2024-03-02T09:30:00.000Z", *out.ApprovedAt)
	assert.Equal(t, approver.Hex(), *out.ApprovedBy)
	assert.Nil(t, out.RejectionReason)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", *out.CreatedAt)
	assert.Nil(t, out.UpdatedAt)
	assert.Equal(t, []string{}, out.Images)
	assert.Equal(t, []string{}, out.Amenities)
}

func TestToListing_NullsOnWire(t *testing.T) {
	l := models.Listing{ID: primitive.NewObjectID(), Status: models.StatusPending}
	body, err := json.Marshal(ToListing(&l))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded, "approvedAt")
	assert.Nil(t, decoded["approvedAt"])
	assert.Contains(t, decoded, "approvedBy")
	assert.Nil(t, decoded["approvedBy"])
	assert.Contains(t, decoded, "rejectionReason")
	assert.Nil(t, decoded["rejectionReason"])
}

func TestToUser_NoPassword(t *testing.T) {
	fav := primitive.NewObjectID()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Email:        "a@example.com",
		PasswordHash: "$2a$10$secret",
		Role:         models.RoleAgent,
		Favorites:    []primitive.ObjectID{fav},
	}

	body, err := json.Marshal(ToUser(&u))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret")
	assert.NotContains(t, string(body), "password")
	assert.Contains(t, string(body), fav.Hex())
}

func TestListingInput_ToDraft(t *testing.T) {
	price := 5000.0
	in := ListingInput{Title: "Loft", Price: &price, Location: "Lagos"}

	draft, err := in.ToDraft()
	require.NoError(t, err)
	assert.Equal(t, models.ListingTypeSale, draft.ListingType)
	assert.Equal(t, models.CategoryResidential, draft.Category)
	assert.Equal(t, 5000.0, draft.Price)
}

func TestListingInput_PerFieldDetail(t *testing.T) {
	negative := -1.0
	in := ListingInput{
		Title:    "ab",
		Price:    &negative,
		Category: "castle",
		Contact:  ContactInput{Email: "not-an-email"},
	}

	_, err := in.ToDraft()
	e := apperr.From(err)
	require.Equal(t, apperr.ValidationFailed, e.Kind)
	assert.Equal(t, "must be at least 3 characters", e.Fields["title"])
	assert.Equal(t, "must be greater than or equal to 0", e.Fields["price"])
	assert.Equal(t, "is required", e.Fields["location"])
	assert.Equal(t, "must be one of residential, commercial, land", e.Fields["category"])
	assert.Equal(t, "must be a valid email address", e.Fields["contact.email"])
}

func TestListingInput_MissingPrice(t *testing.T) {
	in := ListingInput{Title: "Loft", Location: "Lagos"}
	_, err := in.ToDraft()
	assert.Equal(t, "is required", apperr.From(err).Fields["price"])
}

func TestDecodeListingUpdate_Action(t *testing.T) {
	u, err := DecodeListingUpdate([]byte(`{"action":"reject","rejectionReason":"Blurry"}`))
	require.NoError(t, err)
	require.NotNil(t, u.Action)
	assert.Equal(t, "reject", u.Action.Action)
	assert.Equal(t, "Blurry", *u.Action.RejectionReason)

	_, err = DecodeListingUpdate([]byte(`{"action":7}`))
	assert.True(t, apperr.Is(err, apperr.InvalidAction))

	_, err = DecodeListingUpdate([]byte(`[1,2]`))
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}

func TestDecodeListingUpdate_Patch(t *testing.T) {
	u, err := DecodeListingUpdate([]byte(`{
		"title": "Garden flat",
		"bedrooms": null,
		"price": 1200,
		"status": "sold",
		"verified": true,
		"approvedBy": "abc",
		"views": 1000
	}`))
	require.NoError(t, err)
	require.Nil(t, u.Action)

	p := u.Patch
	assert.Equal(t, models.Some("Garden flat"), p.Title)
	assert.True(t, p.Bedrooms.Null)
	assert.Equal(t, 1200.0, p.Price.Value)
	assert.Equal(t, models.StatusSold, p.Status.Value)
	assert.True(t, p.Verified.Value)
	assert.True(t, p.ApprovedBy.Set)
	assert.False(t, p.Description.Set)
	assert.Empty(t, p.Invalid)
}

func TestDecodeListingUpdate_RecordsProblems(t *testing.T) {
	u, err := DecodeListingUpdate([]byte(`{
		"title": null,
		"price": "cheap",
		"area": -5,
		"listingType": "lease",
		"contact": {"email": "nope"},
		"verified": "yes"
	}`))
	require.NoError(t, err)

	p := u.Patch
	assert.Equal(t, "may not be null", p.Invalid["title"])
	assert.Equal(t, "has the wrong type", p.Invalid["price"])
	assert.Equal(t, "must be greater than or equal to 0", p.Invalid["area"])
	assert.Equal(t, "must be one of sale, rent", p.Invalid["listingType"])
	assert.Equal(t, "must be a valid email address", p.Invalid["contact.email"])
	assert.Equal(t, "must be a boolean", p.Invalid["verified"])
	assert.True(t, p.Verified.Set)
	assert.False(t, p.Price.Set)
}
