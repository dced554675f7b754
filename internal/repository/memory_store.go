package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
)

// MemoryTriggerStore keeps triggers in process memory. Used for local runs
// without Postgres and in tests.
type MemoryTriggerStore struct {
	mu       sync.RWMutex
	triggers []models.Trigger
}

func NewMemoryTriggerStore() *MemoryTriggerStore {
	return &MemoryTriggerStore{}
}

func (s *MemoryTriggerStore) CreateTrigger(_ context.Context, t *models.Trigger) (string, error) {
	rec := *t
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.triggers = append(s.triggers, rec)
	s.mu.Unlock()
	return rec.ID, nil
}

func (s *MemoryTriggerStore) UpdateTrigger(_ context.Context, id string, patch models.TriggerPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.triggers {
		if s.triggers[i].ID != id {
			continue
		}
		if patch.AnalysisStarted != nil {
			s.triggers[i].AnalysisStarted = *patch.AnalysisStarted
		}
		return nil
	}
	return repository.ErrNotFound
}

// ListTriggers returns the newest triggers first, optionally for one symbol.
func (s *MemoryTriggerStore) ListTriggers(_ context.Context, symbol string, limit int) ([]models.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Trigger, 0, max(limit, 0))
	for i := len(s.triggers) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if symbol != "" && s.triggers[i].Symbol != symbol {
			continue
		}
		out = append(out, s.triggers[i])
	}
	return out, nil
}

// MemoryStrategyStore applies the same conditional update contract as the
// Postgres store: an update only lands while status and targets hit match.
type MemoryStrategyStore struct {
	mu         sync.RWMutex
	strategies map[string]models.Strategy
	writes     int
}

func NewMemoryStrategyStore(seed ...models.Strategy) *MemoryStrategyStore {
	s := &MemoryStrategyStore{strategies: make(map[string]models.Strategy, len(seed))}
	for _, st := range seed {
		s.strategies[st.ID] = st
	}
	return s
}

// Put inserts or replaces a strategy, as an external writer would.
func (s *MemoryStrategyStore) Put(st models.Strategy) {
	s.mu.Lock()
	s.strategies[st.ID] = st
	s.mu.Unlock()
}

func (s *MemoryStrategyStore) Get(id string) (models.Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	return st, ok
}

// Writes counts UpdateStrategy calls, matched or not.
func (s *MemoryStrategyStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStrategyStore) ListActiveStrategies(_ context.Context, statuses []models.StrategyStatus) ([]models.Strategy, error) {
	want := make(map[models.StrategyStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.RLock()
	out := make([]models.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if want[st.Status] {
			out = append(out, st)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStrategyStore) UpdateStrategy(_ context.Context, id string, patch models.StrategyPatch, expect models.StrategyExpect) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	st, ok := s.strategies[id]
	if !ok || st.Status != expect.Status || st.TargetsHit != expect.TargetsHit {
		return 0, nil
	}
	st.Status = patch.Status
	st.TargetsHit = patch.TargetsHit
	st.CurrentPrice = patch.CurrentPrice
	st.LastCheckAt = patch.LastCheckAt
	s.strategies[id] = st
	return 1, nil
}

// MemoryAuditLog is an append-only in-memory audit log.
type MemoryAuditLog struct {
	mu       sync.RWMutex
	breakers []models.CircuitBreakerState
	logs     []models.SystemLog
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (a *MemoryAuditLog) InsertCircuitBreakerLog(_ context.Context, st models.CircuitBreakerState) error {
	a.mu.Lock()
	a.breakers = append(a.breakers, st)
	a.mu.Unlock()
	return nil
}

func (a *MemoryAuditLog) InsertSystemLog(_ context.Context, e models.SystemLog) error {
	a.mu.Lock()
	a.logs = append(a.logs, e)
	a.mu.Unlock()
	return nil
}

func (a *MemoryAuditLog) ListCircuitBreakers(_ context.Context, symbol string, limit int) ([]models.CircuitBreakerState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.CircuitBreakerState, 0, max(limit, 0))
	for i := len(a.breakers) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if symbol != "" && a.breakers[i].Symbol != symbol {
			continue
		}
		out = append(out, a.breakers[i])
	}
	return out, nil
}

// SystemLogs returns a copy of every system log entry.
func (a *MemoryAuditLog) SystemLogs() []models.SystemLog {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.SystemLog(nil), a.logs...)
}

var (
	_ repository.TriggerStore  = (*MemoryTriggerStore)(nil)
	_ repository.StrategyStore = (*MemoryStrategyStore)(nil)
	_ repository.AuditLog      = (*MemoryAuditLog)(nil)
)
