// Package profile maintains per-user behavioral baselines and the bounded
// recent-transaction windows behind them.
package profile

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// WindowCap bounds the per-user recent-transaction window. Statistics are
// recomputed from this window, never accumulated unboundedly.
const WindowCap = 100

// Store is the shared mutable profile state. Apply for the same user must
// be serialized by the implementation; operations on different users may
// proceed in parallel.
type Store interface {
	// Get returns the user's profile, creating the default profile on
	// first sighting.
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	// Window returns the user's recent-transaction window, oldest first.
	Window(ctx context.Context, userID string) ([]models.TransactionSummary, error)
	// Apply appends the transaction to the window and recomputes the
	// profile statistics.
	Apply(ctx context.Context, txn *models.Transaction) error
}

const lockStripes = 64

// stripedLocks serializes per-user read-modify-write cycles without a
// global lock. Users hashing to the same stripe contend; different stripes
// are fully independent.
type stripedLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (s *stripedLocks) lock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &s.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}
