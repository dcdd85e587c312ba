package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/repository"
)

// FavoritesTarget names the user favorites purge in cleanup reports.
const FavoritesTarget = "favorites"

// TargetResult is the outcome of purging one kind of dependent record.
type TargetResult struct {
	Name    string
	Deleted int64
	Err     error
}

// CascadeReport aggregates the per-target outcomes of a cleanup.
type CascadeReport struct {
	ListingID primitive.ObjectID
	Targets   []TargetResult
}

// Failed returns the targets whose purge failed.
func (r CascadeReport) Failed() []TargetResult {
	var failed []TargetResult
	for _, t := range r.Targets {
		if t.Err != nil {
			failed = append(failed, t)
		}
	}
	return failed
}

// OK reports whether every purge succeeded.
func (r CascadeReport) OK() bool {
	return len(r.Failed()) == 0
}

// ICascadeService removes what references a deleted listing.
type ICascadeService interface {
	// Cleanup runs every purge concurrently. A failed purge does not stop
	// the others and is reported, never returned as an error.
	Cleanup(ctx context.Context, listingID primitive.ObjectID) CascadeReport
}

type purge struct {
	name string
	run  func(ctx context.Context, listingID primitive.ObjectID) (int64, error)
}

type cascadeService struct {
	purges  []purge
	timeout time.Duration
}

// NewCascadeService builds a cleanup over the dependent collections plus the
// users' favorite sets. Each purge gets its own timeout.
func NewCascadeService(dependents []repository.IDependentRepository, users repository.IUserRepository, timeout time.Duration) ICascadeService {
	purges := make([]purge, 0, len(dependents)+1)
	for _, dep := range dependents {
		purges = append(purges, purge{name: dep.Name(), run: dep.DeleteByListing})
	}
	if users != nil {
		purges = append(purges, purge{name: FavoritesTarget, run: users.PullFavoriteEverywhere})
	}
	return &cascadeService{purges: purges, timeout: timeout}
}

func (s *cascadeService) Cleanup(ctx context.Context, listingID primitive.ObjectID) CascadeReport {
	// The listing is already gone; a cancelled request must not cut the
	// cleanup short.
	ctx = context.WithoutCancel(ctx)

	report := CascadeReport{ListingID: listingID, Targets: make([]TargetResult, len(s.purges))}
	var wg sync.WaitGroup
	for i, p := range s.purges {
		wg.Add(1)
		go func(i int, p purge) {
			defer wg.Done()
			report.Targets[i] = s.runPurge(ctx, p, listingID)
		}(i, p)
	}
	wg.Wait()

	if failed := report.Failed(); len(failed) > 0 {
		log.Printf("WARN: cleanup of listing %s incomplete: %d of %d targets failed", listingID.Hex(), len(failed), len(report.Targets))
	}
	return report
}

func (s *cascadeService) runPurge(ctx context.Context, p purge, listingID primitive.ObjectID) (result TargetResult) {
	result.Name = p.name
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("purge panicked: %v", r)
			log.Printf("ERROR: cleanup of %s for listing %s panicked: %v", p.name, listingID.Hex(), r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	n, err := p.run(ctx, listingID)
	if err != nil {
		log.Printf("ERROR: cleanup of %s for listing %s failed: %v", p.name, listingID.Hex(), err)
		result.Err = err
		return result
	}
	result.Deleted = n
	return result
}
