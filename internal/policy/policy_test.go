package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/api/internal/models"
)

func TestParseAction(t *testing.T) {
	for _, keyword := range []string{"approve", "reject", "suspend", "sold", "reactivate", " Approve "} {
		a, err := ParseAction(keyword)
		require.NoError(t, err, keyword)
		assert.True(t, a.IsTransition(), keyword)
	}

	for _, keyword := range []string{"", "publish", "edit", "delete"} {
		_, err := ParseAction(keyword)
		assert.ErrorIs(t, err, ErrInvalidAction, keyword)
	}
}

func TestEvaluate_TransitionTable(t *testing.T) {
	type row struct {
		action Action
		from   models.Status
		allow  bool
		next   models.Status
	}
	var rows []row
	for _, from := range models.Statuses {
		rows = append(rows,
			row{ActionApprove, from, true, models.StatusApproved},
			row{ActionReject, from, true, models.StatusRejected},
			row{ActionSuspend, from, from == models.StatusApproved, models.StatusSuspended},
			row{ActionSold, from, from == models.StatusApproved, models.StatusSold},
			row{ActionReactivate, from, from == models.StatusSuspended || from == models.StatusSold, models.StatusApproved},
		)
	}

	for _, r := range rows {
		res := Evaluate(Request{Role: models.RoleAdmin, Status: r.from, Action: r.action})
		if r.allow {
			assert.True(t, res.Allowed(), "%s from %s", r.action, r.from)
			assert.Equal(t, r.next, res.Next, "%s from %s", r.action, r.from)
		} else {
			assert.False(t, res.Allowed(), "%s from %s", r.action, r.from)
			assert.Equal(t, ReasonPrecondition, res.Reason, "%s from %s", r.action, r.from)
		}
	}
}

func TestEvaluate_TransitionsAreAdminOnly(t *testing.T) {
	for _, role := range []models.Role{models.RoleUser, models.RoleAgent, models.RoleInvestor} {
		for _, a := range Transitions {
			res := Evaluate(Request{Role: role, IsOwner: true, Status: models.StatusApproved, Action: a})
			assert.False(t, res.Allowed(), "%s by %s", a, role)
			assert.Equal(t, ReasonNotAdmin, res.Reason)
		}
	}
}

func TestEvaluate_RoleCheckedBeforePrecondition(t *testing.T) {
	res := Evaluate(Request{Role: models.RoleAgent, IsOwner: true, Status: models.StatusPending, Action: ActionSuspend})
	assert.Equal(t, ReasonNotAdmin, res.Reason)
}

func TestEvaluate_EditAndDelete(t *testing.T) {
	for _, a := range []Action{ActionEdit, ActionDelete} {
		for _, status := range models.Statuses {
			owner := Evaluate(Request{Role: models.RoleAgent, IsOwner: true, Status: status, Action: a})
			assert.True(t, owner.Allowed())
			assert.Equal(t, status, owner.Next)

			admin := Evaluate(Request{Role: models.RoleAdmin, Status: status, Action: a})
			assert.True(t, admin.Allowed())

			stranger := Evaluate(Request{Role: models.RoleUser, Status: status, Action: a})
			assert.False(t, stranger.Allowed())
			assert.Equal(t, ReasonNotOwner, stranger.Reason)
		}
	}
}

func fullModerationPatch() models.ListingPatch {
	return models.ListingPatch{
		Title:           models.Some("Sea view flat"),
		Price:           models.Some(120000.0),
		Status:          models.Some(models.StatusSold),
		RejectionReason: models.Some("spam"),
		Verified:        models.Some(true),
		ApprovedAt:      models.Some("2024-01-01T00:00:00Z"),
		ApprovedBy:      models.Some("65a000000000000000000001"),
	}
}

func TestStripModerationFields_NonAdmin(t *testing.T) {
	patch, stripped := StripModerationFields(models.RoleAgent, fullModerationPatch())

	assert.False(t, patch.HasModerationFields())
	assert.ElementsMatch(t, []string{"status", "rejectionReason", "verified", "approvedAt", "approvedBy"}, stripped)
	assert.Equal(t, "Sea view flat", patch.Title.Value)
	assert.Equal(t, 120000.0, patch.Price.Value)
}

func TestStripModerationFields_Admin(t *testing.T) {
	patch, stripped := StripModerationFields(models.RoleAdmin, fullModerationPatch())

	assert.ElementsMatch(t, []string{"approvedAt", "approvedBy"}, stripped)
	assert.Equal(t, models.StatusSold, patch.Status.Value)
	assert.True(t, patch.Verified.Value)
	assert.False(t, patch.ApprovedAt.Set)
	assert.False(t, patch.ApprovedBy.Set)
}

func TestStripModerationFields_NothingToStrip(t *testing.T) {
	patch, stripped := StripModerationFields(models.RoleUser, models.ListingPatch{Title: models.Some("x")})
	assert.Empty(t, stripped)
	assert.True(t, patch.Title.Set)
}

func TestCanView(t *testing.T) {
	assert.True(t, CanView(models.RoleUser, false, models.StatusApproved))
	assert.False(t, CanView(models.RoleUser, false, models.StatusPending))
	assert.True(t, CanView(models.RoleUser, true, models.StatusPending))
	assert.True(t, CanView(models.RoleAdmin, false, models.StatusSuspended))
}

func TestStripModerationFields_DropsProblemsOfStrippedFields(t *testing.T) {
	in := models.ListingPatch{Status: models.Some(models.Status("42"))}
	in.Reject("status", "must be a string")
	in.Reject("price", "must be a number")

	patch, _ := StripModerationFields(models.RoleUser, in)
	assert.Equal(t, map[string]string{"price": "must be a number"}, patch.Invalid)
	assert.Len(t, in.Invalid, 2)

	patch, _ = StripModerationFields(models.RoleAdmin, in)
	assert.Len(t, patch.Invalid, 2)
}
