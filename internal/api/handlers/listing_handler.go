package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/models"
	"estatehub/api/internal/normalize"
	"estatehub/api/internal/services"
)

// ListingHandler handles REST requests for listings.
type ListingHandler struct {
	listingService  services.IListingService
	favoriteService services.IFavoriteService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService services.IListingService, favoriteService services.IFavoriteService) *ListingHandler {
	return &ListingHandler{
		listingService:  listingService,
		favoriteService: favoriteService,
	}
}

func invalidBody() error {
	return apperr.NewValidation(map[string]string{"body": "must be a JSON object"})
}

// CreateListing handles POST /v1/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var in normalize.ListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, invalidBody())
		return
	}
	draft, err := in.ToDraft()
	if err != nil {
		respondError(c, err)
		return
	}

	listing, err := h.listingService.Create(c.Request.Context(), identity, draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, normalize.ToListing(listing))
}

// SearchListings handles GET /v1/listings
func (h *ListingHandler) SearchListings(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.listingService.Search(c.Request.Context(), viewer(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, normalize.Page{
		Listings: normalize.ToListings(page.Listings),
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
	})
}

func parseFilter(c *gin.Context) (models.ListingFilter, error) {
	problems := map[string]string{}
	filter := models.ListingFilter{
		Location:    strings.TrimSpace(c.Query("location")),
		ListingType: c.Query("listingType"),
		Category:    c.Query("category"),
		Status:      models.Status(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		problems["status"] = "must be one of pending, approved, rejected, suspended, sold"
	}

	intParam := func(name string, dst *int) bool {
		raw := c.Query(name)
		if raw == "" {
			return false
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			problems[name] = "must be a non-negative integer"
			return false
		}
		*dst = v
		return true
	}
	floatParam := func(name string) *float64 {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			problems[name] = "must be a non-negative number"
			return nil
		}
		return &v
	}

	var beds int
	if intParam("minBeds", &beds) {
		filter.MinBedrooms = &beds
	}
	filter.PriceMin = floatParam("priceMin")
	filter.PriceMax = floatParam("priceMax")
	intParam("page", &filter.Page)
	intParam("limit", &filter.Limit)

	if owner := c.Query("ownerId"); owner != "" {
		if owner == "me" {
			if v := viewer(c); v != nil {
				id := v.SubjectID
				filter.OwnerID = &id
			} else {
				problems["ownerId"] = "requires authentication"
			}
		} else if id, err := primitive.ObjectIDFromHex(owner); err == nil {
			filter.OwnerID = &id
		} else {
			problems["ownerId"] = "must be a valid user id"
		}
	}

	if len(problems) > 0 {
		return filter, apperr.NewValidation(problems)
	}
	return filter, nil
}

// GetListing handles GET /v1/listings/:id where id may also be a slug.
func (h *ListingHandler) GetListing(c *gin.Context) {
	listing, err := h.listingService.Get(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, normalize.ToListing(listing))
}

// UpdateListing handles PATCH /v1/listings/:id. A body with an "action"
// key is a moderation request; any other body is a content edit.
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, invalidBody())
		return
	}
	update, err := normalize.DecodeListingUpdate(body)
	if err != nil {
		respondError(c, err)
		return
	}

	var listing *models.Listing
	if update.Action != nil {
		listing, err = h.listingService.ApplyAction(c.Request.Context(), identity, c.Param("id"),
			update.Action.Action, update.Action.RejectionReason)
	} else {
		listing, err = h.listingService.Edit(c.Request.Context(), identity, c.Param("id"), update.Patch)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, normalize.ToListing(listing))
}

// DeleteListing handles DELETE /v1/listings/:id
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	if _, err := h.listingService.Delete(c.Request.Context(), identity, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

// ToggleFavorite handles POST /v1/listings/:id/favorite
func (h *ListingHandler) ToggleFavorite(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	favorited, err := h.favoriteService.Toggle(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorited": favorited})
}

// MyFavorites handles GET /v1/users/me/favorites
func (h *ListingHandler) MyFavorites(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	listings, err := h.listingService.FavoritesOf(c.Request.Context(), identity.SubjectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": normalize.ToListings(listings)})
}

type imageUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// RequestImageUpload handles POST /v1/listings/:id/images
func (h *ListingHandler) RequestImageUpload(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var req imageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody())
		return
	}

	upload, err := h.listingService.ImageUploadURL(c.Request.Context(), identity, c.Param("id"), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

type imageCompleteRequest struct {
	Key string `json:"key"`
}

// CompleteImageUpload handles POST /v1/listings/:id/images/complete
func (h *ListingHandler) CompleteImageUpload(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var req imageCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		respondError(c, apperr.NewValidation(map[string]string{"key": "is required"}))
		return
	}

	if err := h.listingService.CompleteImageUpload(c.Request.Context(), identity, c.Param("id"), req.Key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
}
