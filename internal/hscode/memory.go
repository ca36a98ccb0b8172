package hscode

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

// MemoryRepository keeps codes in process memory. It backs development runs
// and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]HSCode
	codes map[string]string
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]HSCode{}, codes: map[string]string{}}
}

func (m *MemoryRepository) List(_ context.Context, params ListParams) ([]HSCode, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(params.Search))
	matched := make([]HSCode, 0, len(m.byID))
	for _, c := range m.byID {
		if needle == "" ||
			strings.Contains(strings.ToLower(c.Code), needle) ||
			strings.Contains(strings.ToLower(c.Description), needle) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

	total := len(matched)
	start := (params.Page - 1) * params.Limit
	if start < 0 || start >= total {
		return []HSCode{}, total, nil
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (HSCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return HSCode{}, fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
	}
	return c, nil
}

func (m *MemoryRepository) Create(_ context.Context, c HSCode) (HSCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.codes[c.Code]; taken {
		return HSCode{}, fmt.Errorf("%w: hs code %s already exists", httpx.ErrDuplicate, c.Code)
	}
	c.UpdatedAt = c.CreatedAt
	m.byID[c.ID] = c
	m.codes[c.Code] = c.ID
	return c, nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, fn func(*HSCode) error) (HSCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[id]
	if !ok {
		return HSCode{}, fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
	}
	next := current
	if err := fn(&next); err != nil {
		return HSCode{}, err
	}
	if next.Code != current.Code {
		if owner, taken := m.codes[next.Code]; taken && owner != id {
			return HSCode{}, fmt.Errorf("%w: hs code %s already exists", httpx.ErrDuplicate, next.Code)
		}
		delete(m.codes, current.Code)
		m.codes[next.Code] = id
	}
	next.ID = id
	m.byID[id] = next
	return next, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
	}
	delete(m.byID, id)
	delete(m.codes, c.Code)
	return nil
}
