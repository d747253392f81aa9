package store

import (
	"sort"
	"sync"
	"time"

	"github.com/chatlink/chatlink/internal/models"
)

// MemoryStore provides an in-memory storage for content items and settings.
// It is thread-safe and supports concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	content  map[int64]*models.ContentItem
	events   []*models.SyncEvent
	nextID   int64
	eventID  int64
	settings SettingsStore
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		content:  make(map[int64]*models.ContentItem),
		nextID:   1,
		settings: NewMemorySettingsStore(),
	}
}

// Content operations

// GetContent retrieves a content item by ID
func (s *MemoryStore) GetContent(id int64) (*models.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.content[id]
	if !ok {
		return nil, false
	}
	copied := *item
	return &copied, true
}

// SetContent stores or updates a content item. A zero ID is assigned.
func (s *MemoryStore) SetContent(item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == 0 {
		item.ID = s.nextID
		s.nextID++
	} else if item.ID >= s.nextID {
		s.nextID = item.ID + 1
	}
	if item.SyncStatus == "" {
		item.SyncStatus = models.SyncPending
	}
	item.UpdatedAt = time.Now()

	copied := *item
	s.content[item.ID] = &copied
	return nil
}

// DeleteContent removes a content item
func (s *MemoryStore) DeleteContent(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.content[id]; !ok {
		return false
	}
	delete(s.content, id)
	return true
}

// ListContent returns all content items ordered by ID ascending
func (s *MemoryStore) ListContent() []*models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ContentItem, 0, len(s.content))
	for _, item := range s.content {
		copied := *item
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ListEligibleContent returns a page of published, non-excluded items of the
// given types, ordered by ID ascending. The stable ordering guarantees pages
// neither skip nor duplicate items while the set is unchanged.
func (s *MemoryStore) ListEligibleContent(types []string, offset, limit int) ([]*models.ContentItem, error) {
	eligible := s.eligible(types)

	if offset >= len(eligible) {
		return nil, nil
	}
	end := offset + limit
	if end > len(eligible) {
		end = len(eligible)
	}
	return eligible[offset:end], nil
}

// CountEligibleContent returns the number of published, non-excluded items
// of the given types
func (s *MemoryStore) CountEligibleContent(types []string) (int, error) {
	return len(s.eligible(types)), nil
}

func (s *MemoryStore) eligible(types []string) []*models.ContentItem {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ContentItem, 0)
	for _, item := range s.content {
		if !item.Eligible() {
			continue
		}
		if len(typeSet) > 0 && !typeSet[item.Type] {
			continue
		}
		copied := *item
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Sync state operations

// MarkContentSynced records a successful push and clears any prior error
func (s *MemoryStore) MarkContentSynced(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.content[id]
	if !ok {
		return nil
	}
	item.SyncStatus = models.SyncSynced
	item.SyncedAt = &at
	item.SyncError = ""
	item.UpdatedAt = time.Now()
	s.logEventLocked(id, models.SyncSynced, "")
	return nil
}

// MarkContentError records a failed push; the item remains retryable
func (s *MemoryStore) MarkContentError(id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.content[id]
	if !ok {
		return nil
	}
	item.SyncStatus = models.SyncError
	item.SyncError = msg
	item.UpdatedAt = time.Now()
	s.logEventLocked(id, models.SyncError, msg)
	return nil
}

// SetContentExcluded flips the exclusion flag for an item
func (s *MemoryStore) SetContentExcluded(id int64, excluded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.content[id]
	if !ok {
		return nil
	}
	item.Excluded = excluded
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) logEventLocked(itemID int64, status models.SyncStatus, msg string) {
	s.eventID++
	s.events = append(s.events, &models.SyncEvent{
		ID:        s.eventID,
		ItemID:    itemID,
		Status:    status,
		Message:   msg,
		CreatedAt: time.Now(),
	})
}

// ListSyncEvents returns the most recent sync events, newest first
func (s *MemoryStore) ListSyncEvents(limit int) []*models.SyncEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SyncEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *s.events[i]
		result = append(result, &copied)
	}
	return result
}

// Clear removes all data from the store
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.content = make(map[int64]*models.ContentItem)
	s.events = nil
	s.nextID = 1
	if settings, ok := s.settings.(*MemorySettingsStore); ok {
		settings.Clear()
	}
}

// Stats returns statistics about the store
func (s *MemoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{ContentCount: len(s.content)}
	for _, item := range s.content {
		switch item.SyncStatus {
		case models.SyncSynced:
			stats.SyncedCount++
		case models.SyncError:
			stats.ErrorCount++
		}
		if item.Excluded {
			stats.ExcludedCount++
		}
	}
	return stats
}

// Settings returns the settings store.
func (s *MemoryStore) Settings() SettingsStore {
	return s.settings
}

// Close implements Store Close (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// StoreStats contains statistics about the store
type StoreStats struct {
	ContentCount  int `json:"content_count"`
	SyncedCount   int `json:"synced_count"`
	ErrorCount    int `json:"error_count"`
	ExcludedCount int `json:"excluded_count"`
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// Store defines the interface for content and settings storage
type Store interface {
	// Content operations
	GetContent(id int64) (*models.ContentItem, bool)
	SetContent(item *models.ContentItem) error
	DeleteContent(id int64) bool
	ListContent() []*models.ContentItem
	ListEligibleContent(types []string, offset, limit int) ([]*models.ContentItem, error)
	CountEligibleContent(types []string) (int, error)

	// Sync state operations
	MarkContentSynced(id int64, at time.Time) error
	MarkContentError(id int64, msg string) error
	SetContentExcluded(id int64, excluded bool) error
	ListSyncEvents(limit int) []*models.SyncEvent

	// Management
	Clear()
	Stats() StoreStats
	Settings() SettingsStore
	Close() error
}
