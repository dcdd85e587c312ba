// Package lifecycle computes listing state changes.
//
// The engine never writes. It turns a current listing plus a request into a
// Change: the document fields to set, the status the write must still find
// in storage, and the resulting listing.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/models"
	"estatehub/api/internal/policy"
)

// DefaultRejectionReason is used when a rejection carries no reason.
const DefaultRejectionReason = "Rejected by admin"

// ErrConflictingState is wrapped by errors for transitions whose status
// precondition does not hold.
var ErrConflictingState = errors.New("conflicting state")

// Change is a planned update of one listing.
type Change struct {
	// Set holds stored field names and their new values. A nil value clears
	// a nullable field.
	Set bson.M
	// ExpectStatus, when non-nil, is the status the stored record must still
	// have for the write to apply.
	ExpectStatus *models.Status
	// Next is the listing as it will be after the write.
	Next models.Listing
	// Action is the transition applied, zero for a content-only edit.
	Action policy.Action
}

// Transitioned reports whether the change applies a status transition.
func (c Change) Transitioned() bool {
	return c.Action != 0
}

// Engine is the listing state machine.
type Engine struct {
	now             func() time.Time
	rejectionReason string
}

// NewEngine returns an engine stamping times with time.Now. An empty
// rejectionReason falls back to DefaultRejectionReason.
func NewEngine(rejectionReason string) *Engine {
	if rejectionReason == "" {
		rejectionReason = DefaultRejectionReason
	}
	return &Engine{now: time.Now, rejectionReason: rejectionReason}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) stamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

// New builds a freshly submitted listing. It starts pending with zero
// counters and no approval audit.
func (e *Engine) New(draft models.ListingDraft, ownerID primitive.ObjectID) models.Listing {
	now := e.stamp()
	return models.Listing{
		Slug:        slug.Make(draft.Title),
		OwnerID:     ownerID,
		Status:      models.StatusPending,
		Title:       draft.Title,
		Description: draft.Description,
		Price:       draft.Price,
		PriceUSD:    draft.PriceUSD,
		ListingType: draft.ListingType,
		Location:    draft.Location,
		Category:    draft.Category,
		Bedrooms:    draft.Bedrooms,
		Bathrooms:   draft.Bathrooms,
		Area:        draft.Area,
		Images:      nonNil(draft.Images),
		Amenities:   uniqueStrings(draft.Amenities),
		Contact:     draft.Contact,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition plans a moderation action. The caller is expected to have
// checked the actor's role; the engine checks the status precondition.
func (e *Engine) Transition(current models.Listing, action policy.Action, actor primitive.ObjectID, reason *string) (Change, error) {
	if !action.IsTransition() {
		return Change{}, apperr.NewInvalidAction(fmt.Sprintf("%s is not a status transition", action))
	}
	if !action.Allows(current.Status) {
		return Change{}, conflict(action.String(), current.Status)
	}

	c := e.begin(current)
	e.apply(&c, action, actor, reason)
	return c, nil
}

// Edit plans a content edit. The patch must already have been stripped of
// fields the actor may not set. A status carried by the patch is applied
// through the same transition rules as the action path.
func (e *Engine) Edit(current models.Listing, patch models.ListingPatch, actor primitive.ObjectID) (Change, error) {
	if len(patch.Invalid) > 0 {
		return Change{}, apperr.NewValidation(patch.Invalid)
	}

	c := e.begin(current)
	next := &c.Next

	setValue(c.Set, "title", patch.Title, &next.Title)
	setValue(c.Set, "description", patch.Description, &next.Description)
	setValue(c.Set, "price", patch.Price, &next.Price)
	setNullable(c.Set, "price_usd", patch.PriceUSD, &next.PriceUSD)
	setValue(c.Set, "listing_type", patch.ListingType, &next.ListingType)
	setValue(c.Set, "location", patch.Location, &next.Location)
	setValue(c.Set, "category", patch.Category, &next.Category)
	setNullable(c.Set, "bedrooms", patch.Bedrooms, &next.Bedrooms)
	setNullable(c.Set, "bathrooms", patch.Bathrooms, &next.Bathrooms)
	setNullable(c.Set, "area", patch.Area, &next.Area)
	setValue(c.Set, "contact", patch.Contact, &next.Contact)
	if patch.Images.Set {
		next.Images = nonNil(patch.Images.Value)
		c.Set["images"] = next.Images
	}
	if patch.Amenities.Set {
		next.Amenities = uniqueStrings(patch.Amenities.Value)
		c.Set["amenities"] = next.Amenities
	}
	if patch.Verified.Set {
		if patch.Verified.Null {
			return Change{}, apperr.NewValidation(map[string]string{"verified": "must be a boolean"})
		}
		next.Verified = patch.Verified.Value
		c.Set["verified"] = next.Verified
	}

	if err := e.editStatus(&c, current, patch, actor); err != nil {
		return Change{}, err
	}
	return c, nil
}

func (e *Engine) editStatus(c *Change, current models.Listing, patch models.ListingPatch, actor primitive.ObjectID) error {
	var reason *string
	if patch.RejectionReason.HasValue() && patch.RejectionReason.Value != "" {
		r := patch.RejectionReason.Value
		reason = &r
	}

	if patch.Status.Set {
		if patch.Status.Null || !patch.Status.Value.Valid() {
			return apperr.NewValidation(map[string]string{"status": "must be one of pending, approved, rejected, suspended, sold"})
		}
		target := patch.Status.Value

		action, ok := actionFor(current.Status, target)
		if !ok {
			return conflict(statusAction(target), current.Status)
		}
		if action != 0 {
			e.apply(c, action, actor, reason)
		}
	}

	if !patch.RejectionReason.Set {
		return nil
	}
	if c.Next.Status != models.StatusRejected {
		if patch.RejectionReason.Null {
			return nil
		}
		return apperr.NewValidation(map[string]string{"rejectionReason": "only allowed when status is rejected"})
	}
	if reason == nil {
		reason = &e.rejectionReason
	}
	if c.ExpectStatus == nil {
		// The reason is only valid while the listing stays rejected.
		expect := current.Status
		c.ExpectStatus = &expect
	}
	c.Next.RejectionReason = copyString(reason)
	c.Set["rejection_reason"] = *reason
	return nil
}

// actionFor maps a requested status onto the transition with the same side
// effects. A zero action with ok == true means the status is unchanged.
func actionFor(from, to models.Status) (policy.Action, bool) {
	switch to {
	case models.StatusApproved:
		return policy.ActionApprove, true
	case models.StatusRejected:
		return policy.ActionReject, true
	}
	if from == to {
		return 0, true
	}
	switch to {
	case models.StatusSuspended:
		return policy.ActionSuspend, policy.ActionSuspend.Allows(from)
	case models.StatusSold:
		return policy.ActionSold, policy.ActionSold.Allows(from)
	}
	return 0, false
}

func statusAction(to models.Status) string {
	switch to {
	case models.StatusSuspended:
		return policy.ActionSuspend.String()
	case models.StatusSold:
		return policy.ActionSold.String()
	}
	return "move to " + string(to)
}

func (e *Engine) begin(current models.Listing) Change {
	now := e.stamp()
	next := current
	next.UpdatedAt = now
	return Change{
		Set:  bson.M{"updated_at": now},
		Next: next,
	}
}

func (e *Engine) apply(c *Change, action policy.Action, actor primitive.ObjectID, reason *string) {
	target, _ := action.Target()
	expect := c.Next.Status
	c.ExpectStatus = &expect
	c.Action = action

	next := &c.Next
	next.Status = target
	c.Set["status"] = target

	switch action {
	case policy.ActionApprove:
		stampedAt, by := next.UpdatedAt, actor
		next.ApprovedAt, next.ApprovedBy, next.RejectionReason = &stampedAt, &by, nil
		c.Set["approved_at"] = stampedAt
		c.Set["approved_by"] = actor
		c.Set["rejection_reason"] = nil
	case policy.ActionReject:
		stampedAt, by := next.UpdatedAt, actor
		if reason == nil || *reason == "" {
			reason = &e.rejectionReason
		}
		next.ApprovedAt, next.ApprovedBy, next.RejectionReason = &stampedAt, &by, copyString(reason)
		c.Set["approved_at"] = stampedAt
		c.Set["approved_by"] = actor
		c.Set["rejection_reason"] = *reason
	case policy.ActionSuspend, policy.ActionSold, policy.ActionReactivate:
		// status only
	case policy.ActionEdit, policy.ActionDelete:
	}
}

func conflict(action string, from models.Status) *apperr.Error {
	return apperr.Wrap(apperr.ConflictingState,
		fmt.Sprintf("cannot %s a listing that is %s", action, from), ErrConflictingState)
}

func setValue[T any](set bson.M, key string, o models.Optional[T], dst *T) {
	if !o.HasValue() {
		return
	}
	*dst = o.Value
	set[key] = o.Value
}

func setNullable[T any](set bson.M, key string, o models.Optional[T], dst **T) {
	if !o.Set {
		return
	}
	if o.Null {
		*dst = nil
		set[key] = nil
		return
	}
	v := o.Value
	*dst = &v
	set[key] = v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
