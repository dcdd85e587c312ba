package normalize

import (
	"bytes"
	"encoding/json"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/models"
)

const (
	ruleTitle       = "min=3,max=200"
	ruleDescription = "max=5000"
	ruleMoney       = "gte=0"
	ruleListingType = "oneof=sale rent"
	ruleLocation    = "min=1,max=200"
	ruleCategory    = "oneof=residential commercial land"
	ruleRooms       = "gte=0,lte=100"
	ruleArea        = "gte=0"
	ruleImages      = "max=30,dive,required,max=2048"
	ruleAmenities   = "max=50,dive,required,max=60"
)

// ContactInput is the contact block of a create or edit request.
type ContactInput struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

func (c ContactInput) toModel() models.Contact {
	return models.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// ListingInput is the body of a create request.
type ListingInput struct {
	Title       string       `json:"title" validate:"required,min=3,max=200"`
	Description string       `json:"description" validate:"max=5000"`
	Price       *float64     `json:"price" validate:"required,gte=0"`
	PriceUSD    *float64     `json:"priceUsd" validate:"omitempty,gte=0"`
	ListingType string       `json:"listingType" validate:"omitempty,oneof=sale rent"`
	Location    string       `json:"location" validate:"required,max=200"`
	Category    string       `json:"category" validate:"omitempty,oneof=residential commercial land"`
	Bedrooms    *int         `json:"bedrooms" validate:"omitempty,gte=0,lte=100"`
	Bathrooms   *int         `json:"bathrooms" validate:"omitempty,gte=0,lte=100"`
	Area        *int         `json:"area" validate:"omitempty,gte=0"`
	Images      []string     `json:"images" validate:"max=30,dive,required,max=2048"`
	Amenities   []string     `json:"amenities" validate:"max=50,dive,required,max=60"`
	Contact     ContactInput `json:"contact"`
}

// ToDraft validates the input and converts it to a draft.
func (in *ListingInput) ToDraft() (models.ListingDraft, error) {
	if err := Validate.Struct(in); err != nil {
		return models.ListingDraft{}, apperr.NewValidation(FieldProblems(err))
	}

	listingType := in.ListingType
	if listingType == "" {
		listingType = models.ListingTypeSale
	}
	category := in.Category
	if category == "" {
		category = models.CategoryResidential
	}
	return models.ListingDraft{
		Title:       in.Title,
		Description: in.Description,
		Price:       *in.Price,
		PriceUSD:    in.PriceUSD,
		ListingType: listingType,
		Location:    in.Location,
		Category:    category,
		Bedrooms:    in.Bedrooms,
		Bathrooms:   in.Bathrooms,
		Area:        in.Area,
		Images:      in.Images,
		Amenities:   in.Amenities,
		Contact:     in.Contact.toModel(),
	}, nil
}

// ActionRequest is a moderation request.
type ActionRequest struct {
	Action          string
	RejectionReason *string
}

// ListingUpdate is a decoded PATCH body: either an action or a content patch.
type ListingUpdate struct {
	Action *ActionRequest
	Patch  models.ListingPatch
}

// DecodeListingUpdate splits a PATCH body. A body carrying an "action" key
// is a moderation request; anything else is a partial content edit.
//
// Content fields are checked here but problems are recorded on the patch
// rather than returned, so that they are reported only after the actor has
// been authorised. Moderation fields are decoded loosely because they may
// still be dropped.
func DecodeListingUpdate(body []byte) (ListingUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return ListingUpdate{}, apperr.NewValidation(map[string]string{"body": "must be a JSON object"})
	}

	if rawAction, ok := raw["action"]; ok {
		req, err := decodeAction(rawAction, raw["rejectionReason"])
		if err != nil {
			return ListingUpdate{}, err
		}
		return ListingUpdate{Action: req}, nil
	}
	return ListingUpdate{Patch: decodePatch(raw)}, nil
}

func decodeAction(rawAction, rawReason json.RawMessage) (*ActionRequest, error) {
	req := &ActionRequest{}
	if err := json.Unmarshal(rawAction, &req.Action); err != nil {
		return nil, apperr.NewInvalidAction("action must be a string")
	}
	if len(rawReason) > 0 && !isNull(rawReason) {
		var reason string
		if err := json.Unmarshal(rawReason, &reason); err != nil {
			return nil, apperr.NewValidation(map[string]string{"rejectionReason": "must be a string"})
		}
		if err := Validate.Var(reason, "max=1000"); err != nil {
			return nil, apperr.NewValidation(map[string]string{"rejectionReason": "must be at most 1000 characters"})
		}
		req.RejectionReason = &reason
	}
	return req, nil
}

func decodePatch(raw map[string]json.RawMessage) models.ListingPatch {
	p := &models.ListingPatch{}

	decodeField(p, raw, "title", false, ruleTitle, &p.Title)
	decodeField(p, raw, "description", false, ruleDescription, &p.Description)
	decodeField(p, raw, "price", false, ruleMoney, &p.Price)
	decodeField(p, raw, "priceUsd", true, ruleMoney, &p.PriceUSD)
	decodeField(p, raw, "listingType", false, ruleListingType, &p.ListingType)
	decodeField(p, raw, "location", false, ruleLocation, &p.Location)
	decodeField(p, raw, "category", false, ruleCategory, &p.Category)
	decodeField(p, raw, "bedrooms", true, ruleRooms, &p.Bedrooms)
	decodeField(p, raw, "bathrooms", true, ruleRooms, &p.Bathrooms)
	decodeField(p, raw, "area", true, ruleArea, &p.Area)
	decodeField(p, raw, "images", true, ruleImages, &p.Images)
	decodeField(p, raw, "amenities", true, ruleAmenities, &p.Amenities)

	if v, ok := raw["contact"]; ok {
		var c ContactInput
		switch {
		case isNull(v):
			p.Reject("contact", "may not be null")
		case json.Unmarshal(v, &c) != nil:
			p.Reject("contact", "must be an object")
		default:
			if err := Validate.Struct(c); err != nil {
				for field, msg := range FieldProblems(err) {
					p.Reject("contact."+field, msg)
				}
			} else {
				p.Contact = models.Some(c.toModel())
			}
		}
	}

	decodeLoose(p, raw, "status", &p.Status, "must be a string")
	decodeLoose(p, raw, "rejectionReason", &p.RejectionReason, "must be a string")
	decodeLoose(p, raw, "verified", &p.Verified, "must be a boolean")
	decodeLoose(p, raw, "approvedAt", &p.ApprovedAt, "")
	decodeLoose(p, raw, "approvedBy", &p.ApprovedBy, "")

	return *p
}

// decodeField decodes and checks one content field.
func decodeField[T any](p *models.ListingPatch, raw map[string]json.RawMessage, name string, nullable bool, rule string, dst *models.Optional[T]) {
	v, ok := raw[name]
	if !ok {
		return
	}
	if isNull(v) {
		if nullable {
			*dst = models.Null[T]()
		} else {
			p.Reject(name, "may not be null")
		}
		return
	}

	var val T
	if err := json.Unmarshal(v, &val); err != nil {
		p.Reject(name, "has the wrong type")
		return
	}
	if err := Validate.Var(val, rule); err != nil {
		for _, msg := range FieldProblems(err) {
			p.Reject(name, msg)
			break
		}
		return
	}
	*dst = models.Some(val)
}

// decodeLoose records the field as present whatever its shape. A value of
// the wrong type is recorded as a problem under the field name, which
// StripModerationFields discards together with the field.
func decodeLoose[T any](p *models.ListingPatch, raw map[string]json.RawMessage, name string, dst *models.Optional[T], typeProblem string) {
	v, ok := raw[name]
	if !ok {
		return
	}
	if isNull(v) {
		*dst = models.Null[T]()
		return
	}
	var val T
	if err := json.Unmarshal(v, &val); err != nil && typeProblem != "" {
		p.Reject(name, typeProblem)
	}
	*dst = models.Some(val)
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
