package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// memoryItem is the list payload of a MemoryStore element.
type memoryItem struct {
	key   string
	entry *Entry
}

// MemoryStore is a process-local Store. With a positive bound it evicts
// the least recently used entry once full.
type MemoryStore struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List
	maxEntries int
}

// NewMemoryStore creates an in-memory store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryStore{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	m.order.MoveToFront(el)

	CacheHits.WithLabelValues("memory").Inc()
	return el.Value.(*memoryItem).entry.Clone(), nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	stored := entry.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		// Swap the pointer; the old entry is never mutated
		old := el.Value.(*memoryItem).entry
		el.Value = &memoryItem{key: key, entry: stored}
		CacheSize.WithLabelValues("memory").Add(float64(len(stored.Body) - len(old.Body)))
		m.order.MoveToFront(el)
		return nil
	}

	m.items[key] = m.order.PushFront(&memoryItem{key: key, entry: stored})
	CacheSize.WithLabelValues("memory").Add(float64(len(stored.Body)))

	if m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		m.evictOldest()
	}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	m.remove(el)
	return el.Value.(*memoryItem).entry, nil
}

// DeletePrefix implements Store.
func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, el := range m.items {
		if strings.HasPrefix(key, prefix) {
			m.remove(el)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryStore) evictOldest() {
	if oldest := m.order.Back(); oldest != nil {
		m.remove(oldest)
	}
}

func (m *MemoryStore) remove(el *list.Element) {
	item := el.Value.(*memoryItem)
	m.order.Remove(el)
	delete(m.items, item.key)
	CacheSize.WithLabelValues("memory").Sub(float64(len(item.entry.Body)))
}
