// Package policy decides who may do what to a listing.
//
// Evaluate answers role and ownership questions together with status
// preconditions. StripModerationFields removes the parts of a content edit
// that the actor may not influence. Neither touches storage.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"estatehub/api/internal/models"
)

// ErrInvalidAction is returned by ParseAction for unknown keywords.
var ErrInvalidAction = errors.New("invalid action")

// Action is a mutating request against a listing.
type Action int

const (
	ActionApprove Action = iota + 1
	ActionReject
	ActionSuspend
	ActionSold
	ActionReactivate
	ActionEdit
	ActionDelete
)

// Transitions lists the actions that move a listing between statuses.
var Transitions = []Action{ActionApprove, ActionReject, ActionSuspend, ActionSold, ActionReactivate}

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionSuspend:
		return "suspend"
	case ActionSold:
		return "sold"
	case ActionReactivate:
		return "reactivate"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction maps a request keyword to a transition action. Edit and delete
// are not requested by keyword and are rejected here.
func ParseAction(keyword string) (Action, error) {
	k := strings.ToLower(strings.TrimSpace(keyword))
	for _, a := range Transitions {
		if a.String() == k {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, keyword)
}

// IsTransition reports whether a changes the listing status.
func (a Action) IsTransition() bool {
	_, ok := a.Target()
	return ok
}

// Target is the status a transition action leads to.
func (a Action) Target() (models.Status, bool) {
	switch a {
	case ActionApprove, ActionReactivate:
		return models.StatusApproved, true
	case ActionReject:
		return models.StatusRejected, true
	case ActionSuspend:
		return models.StatusSuspended, true
	case ActionSold:
		return models.StatusSold, true
	case ActionEdit, ActionDelete:
		return "", false
	}
	return "", false
}

// Allows reports whether the action may be applied to a listing in status from.
func (a Action) Allows(from models.Status) bool {
	switch a {
	case ActionApprove, ActionReject, ActionEdit, ActionDelete:
		return true
	case ActionSuspend, ActionSold:
		return from == models.StatusApproved
	case ActionReactivate:
		return from == models.StatusSuspended || from == models.StatusSold
	}
	return false
}

// AdminOnly reports whether only admins may request the action.
func (a Action) AdminOnly() bool {
	switch a {
	case ActionApprove, ActionReject, ActionSuspend, ActionSold, ActionReactivate:
		return true
	case ActionEdit, ActionDelete:
		return false
	}
	return true
}

// Decision is the outcome of a policy check.
type Decision int

const (
	// Deny means the action is not permitted.
	Deny Decision = iota
	// Allow means the action is permitted.
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a check was denied.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	// ReasonNotAdmin means the action requires the admin role.
	ReasonNotAdmin
	// ReasonNotOwner means the actor is neither the owner nor an admin.
	ReasonNotOwner
	// ReasonPrecondition means the actor may request the action but the
	// current status does not allow it.
	ReasonPrecondition
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotAdmin:
		return "admin role required"
	case ReasonNotOwner:
		return "not the owner"
	case ReasonPrecondition:
		return "status precondition not met"
	default:
		return "unknown"
	}
}

// Request is the input to Evaluate.
type Request struct {
	Role    models.Role
	IsOwner bool
	Status  models.Status
	Action  Action
}

// Result is the outcome of Evaluate.
type Result struct {
	Decision Decision
	Reason   DenyReason
	// Next is the resulting status for allowed transitions.
	Next models.Status
}

// Allowed reports whether the decision is Allow.
func (r Result) Allowed() bool {
	return r.Decision == Allow
}

// Evaluate checks role and ownership first, then the status precondition.
// A caller that is not allowed to request an action never learns whether
// the precondition would have held.
func Evaluate(req Request) Result {
	isAdmin := req.Role == models.RoleAdmin

	if req.Action.AdminOnly() {
		if !isAdmin {
			return Result{Decision: Deny, Reason: ReasonNotAdmin}
		}
	} else if !isAdmin && !req.IsOwner {
		return Result{Decision: Deny, Reason: ReasonNotOwner}
	}

	if !req.Action.Allows(req.Status) {
		return Result{Decision: Deny, Reason: ReasonPrecondition}
	}

	next := req.Status
	if target, ok := req.Action.Target(); ok {
		next = target
	}
	return Result{Decision: Allow, Next: next}
}

// StripModerationFields removes the moderation fields the actor may not set.
// Non-admins lose status, rejectionReason, verified, approvedAt and
// approvedBy. Admins keep status, rejectionReason and verified; approvedAt
// and approvedBy are stamped by the lifecycle engine and are dropped for
// everyone. The returned names list what was removed.
func StripModerationFields(role models.Role, patch models.ListingPatch) (models.ListingPatch, []string) {
	var stripped []string

	if patch.ApprovedAt.Set {
		patch.ApprovedAt = models.Optional[string]{}
		stripped = append(stripped, "approvedAt")
	}
	if patch.ApprovedBy.Set {
		patch.ApprovedBy = models.Optional[string]{}
		stripped = append(stripped, "approvedBy")
	}

	if role != models.RoleAdmin {
		if patch.Status.Set {
			patch.Status = models.Optional[models.Status]{}
			stripped = append(stripped, "status")
		}
		if patch.RejectionReason.Set {
			patch.RejectionReason = models.Optional[string]{}
			stripped = append(stripped, "rejectionReason")
		}
		if patch.Verified.Set {
			patch.Verified = models.Optional[bool]{}
			stripped = append(stripped, "verified")
		}
	}

	patch.Invalid = withoutFields(patch.Invalid, stripped)
	return patch, stripped
}

// withoutFields copies problems, leaving out the named fields.
func withoutFields(problems map[string]string, fields []string) map[string]string {
	if len(problems) == 0 || len(fields) == 0 {
		return problems
	}
	out := make(map[string]string, len(problems))
	for k, v := range problems {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CanView reports whether a listing in the given status is visible to the
// actor. Approved listings are public; anything else is limited to the owner
// and admins.
func CanView(role models.Role, isOwner bool, status models.Status) bool {
	if status == models.StatusApproved {
		return true
	}
	return isOwner || role == models.RoleAdmin
}
