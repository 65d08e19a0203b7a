package pricecache

import (
	"context"
	"sort"
	"sync"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

// MemoryStore keeps prices in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.PriceEntry
	puts    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.PriceEntry)}
}

func (s *MemoryStore) Get(_ context.Context, symbol string) (*models.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[symbol]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Put(_ context.Context, entry models.PriceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Symbol] = entry
	s.puts++
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.PriceEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	return entries, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.PriceEntry)
	return nil
}

// PutCount reports how many writes reached the store.
func (s *MemoryStore) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
