package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/auth"
	"estatehub/api/internal/cache"
	"estatehub/api/internal/config"
	"estatehub/api/internal/lifecycle"
	"estatehub/api/internal/models"
	"estatehub/api/internal/policy"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/storage"
)

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ListingPage is one page of search results.
type ListingPage struct {
	Listings []models.Listing
	Total    int64
	Page     int
	Limit    int
}

// IListingService defines the interface for listing-related operations.
// Every method returns *apperr.Error values so callers can map them.
type IListingService interface {
	Create(ctx context.Context, actor auth.Identity, draft models.ListingDraft) (*models.Listing, error)
	// Get resolves an id or slug. Listings the viewer may not see are
	// reported as not found. viewer is nil for anonymous reads.
	Get(ctx context.Context, viewer *auth.Identity, ref string) (*models.Listing, error)
	Search(ctx context.Context, viewer *auth.Identity, filter models.ListingFilter) (*ListingPage, error)
	ApplyAction(ctx context.Context, actor auth.Identity, listingID, keyword string, reason *string) (*models.Listing, error)
	Edit(ctx context.Context, actor auth.Identity, listingID string, patch models.ListingPatch) (*models.Listing, error)
	Delete(ctx context.Context, actor auth.Identity, listingID string) (CascadeReport, error)
	ImageUploadURL(ctx context.Context, actor auth.Identity, listingID, filename, contentType string) (*storage.UploadURL, error)
	CompleteImageUpload(ctx context.Context, actor auth.Identity, listingID, key string) error
	// AddImage appends a processed image. It is called by the image worker.
	AddImage(ctx context.Context, listingID primitive.ObjectID, key string) error
	FavoritesOf(ctx context.Context, subjectID primitive.ObjectID) ([]models.Listing, error)
}

// listingService implements IListingService.
type listingService struct {
	cfg      *config.Config
	listings repository.IListingRepository
	users    repository.IUserRepository
	engine   *lifecycle.Engine
	cache    cache.IListingCache
	cascade  ICascadeService
	tasks    ITaskDispatcher
	storage  storage.IS3Storage
}

// NewListingService creates a new ListingService.
func NewListingService(
	cfg *config.Config,
	listings repository.IListingRepository,
	users repository.IUserRepository,
	engine *lifecycle.Engine,
	listingCache cache.IListingCache,
	cascade ICascadeService,
	tasks ITaskDispatcher,
	store storage.IS3Storage,
) IListingService {
	return &listingService{
		cfg:      cfg,
		listings: listings,
		users:    users,
		engine:   engine,
		cache:    listingCache,
		cascade:  cascade,
		tasks:    tasks,
		storage:  store,
	}
}

func (s *listingService) Create(ctx context.Context, actor auth.Identity, draft models.ListingDraft) (*models.Listing, error) {
	listing := s.engine.New(draft, actor.SubjectID)
	if err := s.listings.Insert(ctx, &listing); err != nil {
		return nil, apperr.NewInternal("failed to create listing", err)
	}
	log.Printf("Listing %s (%s) submitted by %s", listing.ID.Hex(), listing.Slug, actor.SubjectID.Hex())
	return &listing, nil
}

func (s *listingService) Get(ctx context.Context, viewer *auth.Identity, ref string) (*models.Listing, error) {
	listing, ok := s.cache.Get(ctx, ref)
	if !ok {
		var err error
		listing, err = s.listings.FindByRef(ctx, ref)
		if err != nil {
			return nil, notFoundOrInternal(err, "failed to load listing")
		}
		s.cache.Set(ctx, listing)
	}

	var role models.Role
	isOwner := false
	if viewer != nil {
		role = viewer.Role
		isOwner = listing.IsOwnedBy(viewer.SubjectID)
	}
	if !policy.CanView(role, isOwner, listing.Status) {
		return nil, apperr.NewNotFound("Listing not found")
	}
	return listing, nil
}

func (s *listingService) Search(ctx context.Context, viewer *auth.Identity, filter models.ListingFilter) (*ListingPage, error) {
	ownListings := viewer != nil && filter.OwnerID != nil && *filter.OwnerID == viewer.SubjectID
	if (viewer == nil || !viewer.IsAdmin()) && !ownListings {
		filter.Status = models.StatusApproved
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && filter.Limit > s.cfg.MaxPageSize {
		filter.Limit = s.cfg.MaxPageSize
	}
	page, limit := repository.Paging(filter)
	filter.Page, filter.Limit = page, limit

	listings, total, err := s.listings.Search(ctx, filter)
	if err != nil {
		return nil, apperr.NewInternal("failed to search listings", err)
	}
	return &ListingPage{Listings: listings, Total: total, Page: page, Limit: limit}, nil
}

// ApplyAction runs a moderation action. Checks run in order: the keyword,
// the listing's existence, the actor's role, then the status precondition.
func (s *listingService) ApplyAction(ctx context.Context, actor auth.Identity, listingID, keyword string, reason *string) (*models.Listing, error) {
	action, err := policy.ParseAction(keyword)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidAction, fmt.Sprintf("unknown action %q", keyword), err)
	}

	current, err := s.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current, action); err != nil {
		return nil, err
	}

	change, err := s.engine.Transition(*current, action, actor.SubjectID, reason)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, current, change)
}

// Edit applies a partial update. Moderation fields the actor may not set
// are dropped before the engine sees the patch.
func (s *listingService) Edit(ctx context.Context, actor auth.Identity, listingID string, patch models.ListingPatch) (*models.Listing, error) {
	current, err := s.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current, policy.ActionEdit); err != nil {
		return nil, err
	}

	patch, stripped := policy.StripModerationFields(actor.Role, patch)
	if len(stripped) > 0 {
		log.Printf("Dropped %s from edit of listing %s by %s (%s)",
			strings.Join(stripped, ", "), current.ID.Hex(), actor.SubjectID.Hex(), actor.Role)
	}

	change, err := s.engine.Edit(*current, patch, actor.SubjectID)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, current, change)
}

// Delete removes the listing and then everything that references it.
// Cleanup failures are in the report, not in the error.
func (s *listingService) Delete(ctx context.Context, actor auth.Identity, listingID string) (CascadeReport, error) {
	current, err := s.load(ctx, listingID)
	if err != nil {
		return CascadeReport{}, err
	}
	if err := authorize(actor, current, policy.ActionDelete); err != nil {
		return CascadeReport{}, err
	}

	if err := s.listings.Delete(ctx, current.ID); err != nil {
		return CascadeReport{}, notFoundOrInternal(err, "failed to delete listing")
	}
	s.cache.Invalidate(ctx, current)
	log.Printf("Listing %s deleted by %s", current.ID.Hex(), actor.SubjectID.Hex())

	return s.cascade.Cleanup(ctx, current.ID), nil
}

func (s *listingService) ImageUploadURL(ctx context.Context, actor auth.Identity, listingID, filename, contentType string) (*storage.UploadURL, error) {
	problems := map[string]string{}
	if strings.TrimSpace(filename) == "" {
		problems["filename"] = "is required"
	}
	if !imageContentTypes[contentType] {
		problems["contentType"] = "must be one of image/jpeg, image/png, image/webp, image/gif"
	}
	if len(problems) > 0 {
		return nil, apperr.NewValidation(problems)
	}

	current, err := s.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current, policy.ActionEdit); err != nil {
		return nil, err
	}

	upload, err := s.storage.GeneratePresignedPutURL(ctx, current.ID.Hex(), filename, contentType)
	if err != nil {
		return nil, apperr.NewInternal("failed to create upload URL", err)
	}
	return upload, nil
}

func (s *listingService) CompleteImageUpload(ctx context.Context, actor auth.Identity, listingID, key string) error {
	current, err := s.load(ctx, listingID)
	if err != nil {
		return err
	}
	if err := authorize(actor, current, policy.ActionEdit); err != nil {
		return err
	}
	if !strings.HasPrefix(key, storage.ImageKeyPrefix(current.ID.Hex())) || strings.Contains(key, "..") {
		return apperr.NewValidation(map[string]string{"key": "does not belong to this listing"})
	}

	if err := s.tasks.ProcessImage(ctx, current.ID, key); err != nil {
		return apperr.NewInternal("failed to schedule image processing", err)
	}
	return nil
}

func (s *listingService) AddImage(ctx context.Context, listingID primitive.ObjectID, key string) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.listings.AppendImage(ctx, listingID, s.storage.PublicURL(key), now); err != nil {
		return fmt.Errorf("failed to add image %s to listing %s: %w", key, listingID.Hex(), err)
	}
	if listing, err := s.listings.FindByID(ctx, listingID); err == nil {
		s.cache.Invalidate(ctx, listing)
	}
	return nil
}

func (s *listingService) FavoritesOf(ctx context.Context, subjectID primitive.ObjectID) ([]models.Listing, error) {
	user, err := s.users.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NewNotFound("User not found")
		}
		return nil, apperr.NewInternal("failed to load user", err)
	}

	listings, err := s.listings.FindByIDs(ctx, user.Favorites)
	if err != nil {
		return nil, apperr.NewInternal("failed to load favorites", err)
	}
	visible := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if policy.CanView(user.Role, l.IsOwnedBy(subjectID), l.Status) {
			visible = append(visible, l)
		}
	}
	return visible, nil
}

// load reads the authoritative record for a mutation. Malformed ids cannot
// name a listing and are reported as not found.
func (s *listingService) load(ctx context.Context, listingID string) (*models.Listing, error) {
	id, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return nil, apperr.NewNotFound("Listing not found")
	}
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "failed to load listing")
	}
	return listing, nil
}

// commit writes a planned change. A status that moved since it was read
// makes the write a conflict instead of overwriting the other decision.
func (s *listingService) commit(ctx context.Context, current *models.Listing, change lifecycle.Change) (*models.Listing, error) {
	updated, err := s.listings.Update(ctx, current.ID, change.Set, change.ExpectStatus)
	if err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperr.Wrap(apperr.ConflictingState, "listing status changed concurrently, reload and retry", err)
		}
		return nil, notFoundOrInternal(err, "failed to update listing")
	}
	s.cache.Invalidate(ctx, updated)

	if change.Transitioned() {
		log.Printf("Listing %s: %s -> %s (%s)", updated.ID.Hex(), current.Status, updated.Status, change.Action)
		s.tasks.ModerationDecided(ctx, updated, change.Action)
	}
	return updated, nil
}

func authorize(actor auth.Identity, listing *models.Listing, action policy.Action) error {
	res := policy.Evaluate(policy.Request{
		Role:    actor.Role,
		IsOwner: listing.IsOwnedBy(actor.SubjectID),
		Status:  listing.Status,
		Action:  action,
	})
	if res.Allowed() {
		return nil
	}
	switch res.Reason {
	case policy.ReasonPrecondition:
		return apperr.Wrap(apperr.ConflictingState,
			fmt.Sprintf("cannot %s a listing that is %s", action, listing.Status), lifecycle.ErrConflictingState)
	default:
		return apperr.NewForbidden(fmt.Sprintf("%s denied: %s", action, res.Reason))
	}
}

func notFoundOrInternal(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NewNotFound("Listing not found")
	}
	return apperr.NewInternal(message, err)
}
