package services

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/auth"
	"estatehub/api/internal/cache"
	"estatehub/api/internal/policy"
	"estatehub/api/internal/repository"
)

// IFavoriteService flips a user's favorite on a listing.
type IFavoriteService interface {
	// Toggle reports whether the listing is favorited afterwards.
	// Listings the actor may not view are reported as not found unless they
	// are already in the actor's favorites, so they can still be removed.
	Toggle(ctx context.Context, actor auth.Identity, listingID string) (bool, error)
}

type favoriteService struct {
	listings repository.IListingRepository
	users    repository.IUserRepository
	cache    cache.IListingCache
}

// NewFavoriteService creates a new favorite toggle coordinator.
func NewFavoriteService(listings repository.IListingRepository, users repository.IUserRepository, listingCache cache.IListingCache) IFavoriteService {
	return &favoriteService{listings: listings, users: users, cache: listingCache}
}

// Toggle relies only on single-document atomic set operations. An add that
// changes nothing means the listing was favorited, so it is removed; if
// neither changes anything a concurrent toggle got there first and the
// current membership is reported without touching the counter.
func (s *favoriteService) Toggle(ctx context.Context, actor auth.Identity, listingID string) (bool, error) {
	subjectID := actor.SubjectID
	id, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return false, apperr.NewValidation(map[string]string{"id": "must be a valid listing id"})
	}
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperr.NewNotFound("Listing not found")
		}
		return false, apperr.NewInternal("failed to load listing", err)
	}
	if !policy.CanView(actor.Role, listing.OwnerID == subjectID, listing.Status) {
		has, err := s.users.HasFavorite(ctx, subjectID, id)
		if err != nil {
			return false, userErr(err)
		}
		if !has {
			return false, apperr.NewNotFound("Listing not found")
		}
	}

	added, err := s.users.AddFavorite(ctx, subjectID, id)
	if err != nil {
		return false, userErr(err)
	}
	if added {
		s.adjust(ctx, id, 1)
		s.cache.Invalidate(ctx, listing)
		return true, nil
	}

	removed, err := s.users.RemoveFavorite(ctx, subjectID, id)
	if err != nil {
		return false, userErr(err)
	}
	if removed {
		s.adjust(ctx, id, -1)
		s.cache.Invalidate(ctx, listing)
		return false, nil
	}

	has, err := s.users.HasFavorite(ctx, subjectID, id)
	if err != nil {
		return false, userErr(err)
	}
	return has, nil
}

// adjust moves the counter. A decrement that would go below zero, or a
// listing deleted since the membership change, leaves the counter alone.
func (s *favoriteService) adjust(ctx context.Context, id primitive.ObjectID, delta int64) {
	applied, err := s.listings.AdjustFavorites(ctx, id, delta)
	if err != nil {
		log.Printf("ERROR: failed to adjust favorites of listing %s by %d: %v", id.Hex(), delta, err)
		return
	}
	if !applied {
		log.Printf("WARN: favorites counter of listing %s not adjusted by %d (floor reached or listing gone)", id.Hex(), delta)
	}
}

func userErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NewNotFound("User not found")
	}
	return apperr.NewInternal("failed to update favorites", err)
}
