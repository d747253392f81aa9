package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chatlink/chatlink/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSQLiteStoreContentCRUD(t *testing.T) {
	store := newTestSQLiteStore(t)

	item := &models.ContentItem{
		Type:      "post",
		Title:     "Hello",
		URL:       "https://example.com/hello",
		Published: true,
	}
	require.NoError(t, store.SetContent(item))
	assert.NotZero(t, item.ID)
	assert.Equal(t, models.SyncPending, item.SyncStatus)

	got, ok := store.GetContent(item.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Title)
	assert.True(t, got.Published)
	assert.False(t, got.Excluded)

	got.Title = "Updated"
	require.NoError(t, store.SetContent(got))

	got2, ok := store.GetContent(item.ID)
	require.True(t, ok)
	assert.Equal(t, "Updated", got2.Title)

	assert.True(t, store.DeleteContent(item.ID))
	_, ok = store.GetContent(item.ID)
	assert.False(t, ok)

	assert.False(t, store.DeleteContent(item.ID))
}

func TestSQLiteStoreEligiblePagination(t *testing.T) {
	store := newTestSQLiteStore(t)

	for i := 0; i < 25; i++ {
		require.NoError(t, store.SetContent(&models.ContentItem{
			Type:      "post",
			Title:     "Post",
			URL:       "https://example.com/p",
			Published: true,
		}))
	}
	// Drafts and excluded items must not count
	require.NoError(t, store.SetContent(&models.ContentItem{Type: "post", URL: "https://example.com/d", Published: false}))
	require.NoError(t, store.SetContent(&models.ContentItem{Type: "post", URL: "https://example.com/e", Published: true, Excluded: true}))

	count, err := store.CountEligibleContent([]string{"post"})
	require.NoError(t, err)
	assert.Equal(t, 25, count)

	page1, err := store.ListEligibleContent([]string{"post"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, page1, 10)

	page3, err := store.ListEligibleContent([]string{"post"}, 20, 10)
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	// Ordered by ID ascending across pages
	assert.Less(t, page1[0].ID, page1[9].ID)
	assert.Less(t, page1[9].ID, page3[0].ID)
}

func TestSQLiteStoreEligibleTypeFilter(t *testing.T) {
	store := newTestSQLiteStore(t)

	require.NoError(t, store.SetContent(&models.ContentItem{Type: "post", URL: "https://example.com/1", Published: true}))
	require.NoError(t, store.SetContent(&models.ContentItem{Type: "page", URL: "https://example.com/2", Published: true}))
	require.NoError(t, store.SetContent(&models.ContentItem{Type: "product", URL: "https://example.com/3", Published: true}))

	count, err := store.CountEligibleContent([]string{"post", "page"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := store.CountEligibleContent(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all)
}

func TestSQLiteStoreMarkSyncedAndError(t *testing.T) {
	store := newTestSQLiteStore(t)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/1", Published: true}
	require.NoError(t, store.SetContent(item))

	now := time.Now()
	require.NoError(t, store.MarkContentSynced(item.ID, now))

	got, ok := store.GetContent(item.ID)
	require.True(t, ok)
	assert.Equal(t, models.SyncSynced, got.SyncStatus)
	require.NotNil(t, got.SyncedAt)
	assert.Empty(t, got.SyncError)

	require.NoError(t, store.MarkContentError(item.ID, "push failed"))

	got, ok = store.GetContent(item.ID)
	require.True(t, ok)
	assert.Equal(t, models.SyncError, got.SyncStatus)
	assert.Equal(t, "push failed", got.SyncError)

	events := store.ListSyncEvents(10)
	require.Len(t, events, 2)
	// Newest first
	assert.Equal(t, models.SyncError, events[0].Status)
	assert.Equal(t, models.SyncSynced, events[1].Status)
}

func TestSQLiteStoreSetExcluded(t *testing.T) {
	store := newTestSQLiteStore(t)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/1", Published: true}
	require.NoError(t, store.SetContent(item))

	require.NoError(t, store.SetContentExcluded(item.ID, true))
	count, err := store.CountEligibleContent(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.SetContentExcluded(item.ID, false))
	count, err = store.CountEligibleContent(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStoreStatsAndClear(t *testing.T) {
	store := newTestSQLiteStore(t)

	a := &models.ContentItem{Type: "post", URL: "https://example.com/1", Published: true}
	b := &models.ContentItem{Type: "post", URL: "https://example.com/2", Published: true}
	c := &models.ContentItem{Type: "post", URL: "https://example.com/3", Published: true, Excluded: true}
	require.NoError(t, store.SetContent(a))
	require.NoError(t, store.SetContent(b))
	require.NoError(t, store.SetContent(c))
	require.NoError(t, store.MarkContentSynced(a.ID, time.Now()))
	require.NoError(t, store.MarkContentError(b.ID, "boom"))

	stats := store.Stats()
	assert.Equal(t, 3, stats.ContentCount)
	assert.Equal(t, 1, stats.SyncedCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 1, stats.ExcludedCount)

	store.Clear()
	stats = store.Stats()
	assert.Equal(t, 0, stats.ContentCount)
	assert.Empty(t, store.ListSyncEvents(10))
}

func TestSQLiteStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/1", Published: true}
	require.NoError(t, store.SetContent(item))
	require.NoError(t, store.Settings().Set(SettingSelectedTeam, "team-a"))
	require.NoError(t, store.Close())

	store2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	_, ok := store2.GetContent(item.ID)
	assert.True(t, ok)
	val, ok := store2.Settings().Get(SettingSelectedTeam)
	require.True(t, ok)
	assert.Equal(t, "team-a", val)
}
