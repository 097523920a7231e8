package api

import (
	"sync"

	"nutriplan/types"

	"github.com/google/uuid"
)

type session struct {
	plan    types.PlanResult
	profile types.UserProfile
}

// Sessions keeps generated plans in memory for download, evicting the oldest
// entry once the limit is reached.
type Sessions struct {
	mu    sync.Mutex
	limit int
	order []uuid.UUID
	items map[uuid.UUID]session
}

func NewSessions(limit int) *Sessions {
	if limit <= 0 {
		limit = 100
	}
	return &Sessions{limit: limit, items: make(map[uuid.UUID]session)}
}

func (s *Sessions) Put(plan types.PlanResult, profile types.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[plan.ID]; !ok {
		s.order = append(s.order, plan.ID)
	}
	s.items[plan.ID] = session{plan: plan, profile: profile}
	for len(s.order) > s.limit {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Sessions) Get(id uuid.UUID) (types.PlanResult, types.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it.plan, it.profile, ok
}
