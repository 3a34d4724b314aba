package nation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pyropy/territory/core/model"
)

// MemoryStore is an in-process nation record store.
type MemoryStore struct {
	mu      sync.RWMutex
	nations map[string]model.Nation
}

func NewMemoryStore(nations ...model.Nation) *MemoryStore {
	m := &MemoryStore{nations: map[string]model.Nation{}}
	for _, n := range nations {
		m.nations[n.ID] = clone(n)
	}

	return m
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Nation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nations[id]
	if !ok {
		return nil, ErrNationNotFound
	}

	c := clone(n)
	return &c, nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.nations[id]
	return ok, nil
}

func (m *MemoryStore) Save(_ context.Context, nation model.Nation) error {
	if strings.TrimSpace(nation.ID) == "" {
		return ErrEmptyNationID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nations[nation.ID] = clone(nation)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.nations, id)
	return nil
}

func (m *MemoryStore) All(_ context.Context) ([]model.Nation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nations := make([]model.Nation, 0, len(m.nations))
	for _, n := range m.nations {
		nations = append(nations, clone(n))
	}

	sort.Slice(nations, func(i, j int) bool { return nations[i].ID < nations[j].ID })
	return nations, nil
}

func clone(n model.Nation) model.Nation {
	n.ClaimedChunks = append([]string(nil), n.ClaimedChunks...)
	return n
}
