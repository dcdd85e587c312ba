package services

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/models"
	"estatehub/api/internal/policy"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/storage"
)

// --- Mocks ---

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) FindBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByRef(ctx context.Context, ref string) (*models.Listing, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingRepository) Search(ctx context.Context, filter models.ListingFilter) ([]models.Listing, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Listing), args.Get(1).(int64), args.Error(2)
}

func (m *MockListingRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M, expectStatus *models.Status) (*models.Listing, error) {
	args := m.Called(ctx, id, set, expectStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockListingRepository) AppendImage(ctx context.Context, id primitive.ObjectID, image string, at time.Time) error {
	return m.Called(ctx, id, image, at).Error(0)
}

func (m *MockListingRepository) AdjustFavorites(ctx context.Context, id primitive.ObjectID, delta int64) (bool, error) {
	args := m.Called(ctx, id, delta)
	return args.Bool(0), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Insert(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) AddFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) RemoveFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) HasFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) PullFavoriteEverywhere(ctx context.Context, listingID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(int64), args.Error(1)
}

type MockDependentRepository struct {
	mock.Mock
	name string
}

func (m *MockDependentRepository) Name() string { return m.name }

func (m *MockDependentRepository) DeleteByListing(ctx context.Context, listingID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(int64), args.Error(1)
}

type MockListingCache struct {
	mock.Mock
}

func (m *MockListingCache) Get(ctx context.Context, ref string) (*models.Listing, bool) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*models.Listing), args.Bool(1)
}

func (m *MockListingCache) Set(ctx context.Context, listing *models.Listing) {
	m.Called(ctx, listing)
}

func (m *MockListingCache) Invalidate(ctx context.Context, listing *models.Listing) {
	m.Called(ctx, listing)
}

type MockCascadeService struct {
	mock.Mock
}

func (m *MockCascadeService) Cleanup(ctx context.Context, listingID primitive.ObjectID) CascadeReport {
	return m.Called(ctx, listingID).Get(0).(CascadeReport)
}

type MockTaskDispatcher struct {
	mock.Mock
}

func (m *MockTaskDispatcher) ModerationDecided(ctx context.Context, listing *models.Listing, action policy.Action) {
	m.Called(ctx, listing, action)
}

func (m *MockTaskDispatcher) ProcessImage(ctx context.Context, listingID primitive.ObjectID, key string) error {
	return m.Called(ctx, listingID, key).Error(0)
}

type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, listingID, filename, contentType string) (*storage.UploadURL, error) {
	args := m.Called(ctx, listingID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadURL), args.Error(1)
}

func (m *MockS3Storage) PublicURL(key string) string {
	return m.Called(key).String(0)
}

type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// nopCache never hits.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (*models.Listing, bool) { return nil, false }
func (nopCache) Set(context.Context, *models.Listing)                {}
func (nopCache) Invalidate(context.Context, *models.Listing)         {}

// nopDispatcher drops every task.
type nopDispatcher struct{}

func (nopDispatcher) ModerationDecided(context.Context, *models.Listing, policy.Action) {}
func (nopDispatcher) ProcessImage(context.Context, primitive.ObjectID, string) error   { return nil }

// --- In-memory store ---

// memStore keeps listings and users in memory. Every method holds the lock
// for its whole body, giving the same single-document atomicity as Mongo.
type memStore struct {
	mu       sync.Mutex
	listings map[primitive.ObjectID]models.Listing
	users    map[primitive.ObjectID]models.User
	deps     map[string]map[primitive.ObjectID]int64
}

func newMemStore() *memStore {
	return &memStore{
		listings: map[primitive.ObjectID]models.Listing{},
		users:    map[primitive.ObjectID]models.User{},
		deps:     map[string]map[primitive.ObjectID]int64{},
	}
}

func (s *memStore) listingRepo() repository.IListingRepository { return (*memListings)(s) }
func (s *memStore) userRepo() repository.IUserRepository       { return (*memUsers)(s) }

func (s *memStore) dependents(names ...string) []repository.IDependentRepository {
	out := make([]repository.IDependentRepository, 0, len(names))
	for _, n := range names {
		if s.deps[n] == nil {
			s.deps[n] = map[primitive.ObjectID]int64{}
		}
		out = append(out, &memDependents{store: s, name: n})
	}
	return out
}

type memListings memStore

func (r *memListings) Insert(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	r.listings[l.ID] = *l
	return nil
}

func (r *memListings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *memListings) FindBySlug(_ context.Context, slug string) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listings {
		if l.Slug == slug {
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memListings) FindByRef(ctx context.Context, ref string) (*models.Listing, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return r.FindByID(ctx, id)
	}
	return r.FindBySlug(ctx, ref)
}

func (r *memListings) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Listing{}
	for _, id := range ids {
		if l, ok := r.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memListings) Search(_ context.Context, f models.ListingFilter) ([]models.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Listing{}
	for _, l := range r.listings {
		if f.Status == "" || l.Status == f.Status {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memListings) Update(_ context.Context, id primitive.ObjectID, set bson.M, expectStatus *models.Status) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if expectStatus != nil && l.Status != *expectStatus {
		return nil, repository.ErrStatusChanged
	}

	raw, err := bson.Marshal(l)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range set {
		doc[k] = v
	}
	if raw, err = bson.Marshal(doc); err != nil {
		return nil, err
	}
	var next models.Listing
	if err := bson.Unmarshal(raw, &next); err != nil {
		return nil, err
	}
	r.listings[id] = next
	return &next, nil
}

func (r *memListings) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *memListings) AppendImage(_ context.Context, id primitive.ObjectID, image string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range l.Images {
		if existing == image {
			return nil
		}
	}
	l.Images = append(l.Images, image)
	l.UpdatedAt = at
	r.listings[id] = l
	return nil
}

func (r *memListings) AdjustFavorites(_ context.Context, id primitive.ObjectID, delta int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.Favorites+delta < 0 {
		return false, nil
	}
	l.Favorites += delta
	r.listings[id] = l
	return true, nil
}

type memUsers memStore

func (r *memUsers) Insert(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Favorites = append([]primitive.ObjectID(nil), u.Favorites...)
	return &u, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) AddFavorite(_ context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for _, f := range u.Favorites {
		if f == listingID {
			return false, nil
		}
	}
	u.Favorites = append(u.Favorites, listingID)
	r.users[userID] = u
	return true, nil
}

func (r *memUsers) RemoveFavorite(_ context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, f := range u.Favorites {
		if f == listingID {
			u.Favorites = append(u.Favorites[:i:i], u.Favorites[i+1:]...)
			r.users[userID] = u
			return true, nil
		}
	}
	return false, nil
}

func (r *memUsers) HasFavorite(_ context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for _, f := range u.Favorites {
		if f == listingID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUsers) PullFavoriteEverywhere(_ context.Context, listingID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		for i, f := range u.Favorites {
			if f == listingID {
				u.Favorites = append(u.Favorites[:i:i], u.Favorites[i+1:]...)
				r.users[id] = u
				n++
				break
			}
		}
	}
	return n, nil
}

// memDependents counts records per listing in one named collection.
type memDependents struct {
	store *memStore
	name  string
}

func (d *memDependents) Name() string { return d.name }

func (d *memDependents) DeleteByListing(_ context.Context, listingID primitive.ObjectID) (int64, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	n := d.store.deps[d.name][listingID]
	delete(d.store.deps[d.name], listingID)
	return n, nil
}

func (s *memStore) addDependents(name string, listingID primitive.ObjectID, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps[name][listingID] += n
}

func (s *memStore) countDependents(listingID primitive.ObjectID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, byListing := range s.deps {
		total += byListing[listingID]
	}
	return total
}
