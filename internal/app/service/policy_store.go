package service

import (
	"sync"

	"balance_engine/internal/domain/entity"
)

// PolicyStore is the in-memory port.PolicyProvider.
// The global hide-no-cost toggle applies to every account.
type PolicyStore struct {
	mu         sync.RWMutex
	byAccount  map[entity.AccountID]entity.AssetPolicy
	hideNoCost bool
}

func NewPolicyStore() *PolicyStore {
	return &PolicyStore{byAccount: make(map[entity.AccountID]entity.AssetPolicy)}
}

// Policy implements port.PolicyProvider.
func (s *PolicyStore) Policy(id entity.AccountID) entity.AssetPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.byAccount[id]
	p.HideNoCostTokens = s.hideNoCost
	return p
}

// SetPolicy replaces the visibility preferences of id.
func (s *PolicyStore) SetPolicy(id entity.AccountID, p entity.AssetPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAccount[id] = p
}

// SetHideNoCostTokens flips the global toggle.
func (s *PolicyStore) SetHideNoCostTokens(hide bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hideNoCost = hide
}

// Remove drops the preferences of id.
func (s *PolicyStore) Remove(id entity.AccountID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAccount, id)
}
