package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/repository"
)

func TestCascadeService_Cleanup(t *testing.T) {
	bookings := &MockDependentRepository{name: "bookings"}
	messages := &MockDependentRepository{name: "messages"}
	users := new(MockUserRepository)
	id := primitive.NewObjectID()

	bookings.On("DeleteByListing", mock.Anything, id).Return(int64(3), nil)
	messages.On("DeleteByListing", mock.Anything, id).Return(int64(0), nil)
	users.On("PullFavoriteEverywhere", mock.Anything, id).Return(int64(2), nil)

	svc := NewCascadeService([]repository.IDependentRepository{bookings, messages}, users, time.Second)
	report := svc.Cleanup(context.Background(), id)

	assert.True(t, report.OK())
	assert.Equal(t, id, report.ListingID)
	assert.Equal(t, []TargetResult{
		{Name: "bookings", Deleted: 3},
		{Name: "messages", Deleted: 0},
		{Name: FavoritesTarget, Deleted: 2},
	}, report.Targets)
}

func TestCascadeService_PartialFailure(t *testing.T) {
	bookings := &MockDependentRepository{name: "bookings"}
	messages := &MockDependentRepository{name: "messages"}
	id := primitive.NewObjectID()
	boom := errors.New("primary stepped down")

	bookings.On("DeleteByListing", mock.Anything, id).Return(int64(0), boom)
	messages.On("DeleteByListing", mock.Anything, id).Return(int64(4), nil)

	report := NewCascadeService([]repository.IDependentRepository{bookings, messages}, nil, time.Second).
		Cleanup(context.Background(), id)

	assert.False(t, report.OK())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bookings", failed[0].Name)
	assert.ErrorIs(t, failed[0].Err, boom)
	assert.Equal(t, int64(4), report.Targets[1].Deleted)
}

type panickingDependent struct{}

func (panickingDependent) Name() string { return "notifications" }

func (panickingDependent) DeleteByListing(context.Context, primitive.ObjectID) (int64, error) {
	panic("nil collection")
}

type blockingDependent struct{}

func (blockingDependent) Name() string { return "slow" }

func (blockingDependent) DeleteByListing(ctx context.Context, _ primitive.ObjectID) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestCascadeService_PanicIsReported(t *testing.T) {
	store := newMemStore()
	deps := append(store.dependents("bookings"), panickingDependent{})
	id := primitive.NewObjectID()
	store.addDependents("bookings", id, 2)

	report := NewCascadeService(deps, nil, time.Second).Cleanup(context.Background(), id)

	require.Len(t, report.Targets, 2)
	assert.Equal(t, int64(2), report.Targets[0].Deleted)
	assert.NoError(t, report.Targets[0].Err)
	assert.ErrorContains(t, report.Targets[1].Err, "panicked")
	assert.Zero(t, store.countDependents(id))
}

func TestCascadeService_TimeoutAndCancelledRequest(t *testing.T) {
	store := newMemStore()
	deps := append(store.dependents("bookings"), blockingDependent{})
	id := primitive.NewObjectID()
	store.addDependents("bookings", id, 1)

	// The request is already gone; cleanup still runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewCascadeService(deps, nil, 50*time.Millisecond).Cleanup(ctx, id)

	assert.Equal(t, int64(1), report.Targets[0].Deleted)
	assert.ErrorIs(t, report.Targets[1].Err, context.DeadlineExceeded)
	assert.Zero(t, store.countDependents(id))
}

func TestCascadeService_NothingToRemove(t *testing.T) {
	store := newMemStore()
	deps := store.dependents("bookings", "messages")
	id := primitive.NewObjectID()
	store.addDependents("bookings", primitive.NewObjectID(), 5)

	report := NewCascadeService(deps, store.userRepo(), time.Second).Cleanup(context.Background(), id)

	assert.True(t, report.OK())
	for _, target := range report.Targets {
		assert.Zero(t, target.Deleted, target.Name)
	}
}
