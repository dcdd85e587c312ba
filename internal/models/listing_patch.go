package models

// Optional carries a partial-update value. Set is false when the field was
// absent from the request; Null is true when it was explicitly null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// HasValue reports whether the field is present with a non-null value.
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// ListingDraft holds the fields supplied when a listing is first submitted.
type ListingDraft struct {
	Title       string
	Description string
	Price       float64
	PriceUSD    *float64
	ListingType string
	Location    string
	Category    string
	Bedrooms    *int
	Bathrooms   *int
	Area        *int
	Images      []string
	Amenities   []string
	Contact     Contact
}

// ListingPatch is a content edit. Only fields with Set == true are applied.
type ListingPatch struct {
	Title       Optional[string]
	Description Optional[string]
	Price       Optional[float64]
	PriceUSD    Optional[float64]
	ListingType Optional[string]
	Location    Optional[string]
	Category    Optional[string]
	Bedrooms    Optional[int]
	Bathrooms   Optional[int]
	Area        Optional[int]
	Images      Optional[[]string]
	Amenities   Optional[[]string]
	Contact     Optional[Contact]

	// Moderation fields. Only admins may influence Status, RejectionReason
	// and Verified; ApprovedAt and ApprovedBy are never applied from input.
	Status          Optional[Status]
	RejectionReason Optional[string]
	Verified        Optional[bool]
	ApprovedAt      Optional[string]
	ApprovedBy      Optional[string]

	// Invalid holds decode problems keyed by wire field name. They are
	// reported only after fields the actor may not set have been dropped.
	Invalid map[string]string
}

// Reject records a problem with a field.
func (p *ListingPatch) Reject(field, message string) {
	if p.Invalid == nil {
		p.Invalid = make(map[string]string)
	}
	p.Invalid[field] = message
}

// HasModerationFields reports whether any moderation-only field is present.
func (p ListingPatch) HasModerationFields() bool {
	return p.Status.Set || p.RejectionReason.Set || p.Verified.Set || p.ApprovedAt.Set || p.ApprovedBy.Set
}

// HasContentFields reports whether any content field is present.
func (p ListingPatch) HasContentFields() bool {
	return p.Title.Set || p.Description.Set || p.Price.Set || p.PriceUSD.Set ||
		p.ListingType.Set || p.Location.Set || p.Category.Set ||
		p.Bedrooms.Set || p.Bathrooms.Set || p.Area.Set ||
		p.Images.Set || p.Amenities.Set || p.Contact.Set
}
