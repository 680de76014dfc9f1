package profile

import (
	"context"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// MemoryStore is the in-process Store used in tests and single-node
// deployments. Per-user sequencing comes from stripe locking around the
// read-modify-write in Apply.
type MemoryStore struct {
	locks    stripedLocks
	profiles map[string]*models.UserProfile
	windows  map[string][]models.TransactionSummary
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.UserProfile),
		windows:  make(map[string][]models.TransactionSummary),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	mu := s.locks.lock(userID)
	defer mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = models.NewUserProfile(userID)
		s.profiles[userID] = p
	}
	clone := *p
	return &clone, nil
}

func (s *MemoryStore) Window(_ context.Context, userID string) ([]models.TransactionSummary, error) {
	mu := s.locks.lock(userID)
	defer mu.Unlock()

	window := s.windows[userID]
	out := make([]models.TransactionSummary, len(window))
	copy(out, window)
	return out, nil
}

func (s *MemoryStore) Apply(_ context.Context, txn *models.Transaction) error {
	mu := s.locks.lock(txn.UserID)
	defer mu.Unlock()

	p, ok := s.profiles[txn.UserID]
	if !ok {
		p = models.NewUserProfile(txn.UserID)
	}
	updated, window := ApplyTransaction(p, s.windows[txn.UserID], txn)
	s.profiles[txn.UserID] = updated
	s.windows[txn.UserID] = window
	return nil
}
