package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/logging"
	"github.com/chatlink/chatlink/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed storage for content items, sync events
// and settings, with WAL mode enabled. It is safe for concurrent use.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	logger   *logging.Logger
	settings SettingsStore

	// Retention cleanup for the sync event log
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	cleanupOnce   sync.Once
	retentionDays int
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithRetention(dbPath, 30)
}

// NewSQLiteStoreWithRetention creates a new SQLite store with custom
// retention for the sync event log
func NewSQLiteStoreWithRetention(dbPath string, retentionDays int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	settingsStore, err := NewSQLiteSettingsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{
		db:            db,
		logger:        logging.NewLogger(),
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
		settings:      settingsStore,
	}

	if retentionDays > 0 {
		store.startCleanup()
	}

	return store, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS content_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					type TEXT NOT NULL,
					title TEXT NOT NULL DEFAULT '',
					url TEXT NOT NULL,
					published INTEGER NOT NULL DEFAULT 0,
					excluded INTEGER NOT NULL DEFAULT 0,
					sync_status TEXT NOT NULL DEFAULT 'pending',
					synced_at DATETIME,
					sync_error TEXT NOT NULL DEFAULT '',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_content_type ON content_items(type);
				CREATE INDEX IF NOT EXISTS idx_content_eligible ON content_items(published, excluded);
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS sync_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					item_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					message TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_sync_events_created ON sync_events(created_at);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	return nil
}

func (s *SQLiteStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(12 * time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupDone:
				return
			case <-s.cleanupTicker.C:
				s.cleanupOldEvents()
			}
		}
	}()
}

func (s *SQLiteStore) cleanupOldEvents() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	res, err := s.db.Exec("DELETE FROM sync_events WHERE created_at < ?", cutoff)
	if err != nil {
		s.logger.Error("sync event cleanup failed", "error", err.Error())
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("pruned old sync events", "count", n, "retention_days", s.retentionDays)
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.cleanupOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
		close(s.cleanupDone)
	})
	return s.db.Close()
}

// Settings returns the settings store.
func (s *SQLiteStore) Settings() SettingsStore {
	return s.settings
}

// Content operations

// GetContent retrieves a content item by ID
func (s *SQLiteStore) GetContent(id int64) (*models.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, type, title, url, published, excluded, sync_status, synced_at, sync_error, updated_at
		FROM content_items WHERE id = ?
	`, id)

	item, err := scanContentItem(row)
	if err != nil {
		return nil, false
	}
	return item, true
}

// SetContent stores or updates a content item. A zero ID is assigned by the
// database.
func (s *SQLiteStore) SetContent(item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.SyncStatus == "" {
		item.SyncStatus = models.SyncPending
	}
	now := time.Now()
	item.UpdatedAt = now

	if item.ID == 0 {
		res, err := s.db.Exec(`
			INSERT INTO content_items (type, title, url, published, excluded, sync_status, synced_at, sync_error, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.Type, item.Title, item.URL, boolToInt(item.Published), boolToInt(item.Excluded),
			string(item.SyncStatus), item.SyncedAt, item.SyncError, now)
		if err != nil {
			return &errors.ErrDatabaseQuery{Operation: "insert content", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return &errors.ErrDatabaseQuery{Operation: "insert content", Err: err}
		}
		item.ID = id
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO content_items (id, type, title, url, published, excluded, sync_status, synced_at, sync_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, title = excluded.title, url = excluded.url,
			published = excluded.published, excluded = excluded.excluded,
			sync_status = excluded.sync_status, synced_at = excluded.synced_at,
			sync_error = excluded.sync_error, updated_at = excluded.updated_at
	`, item.ID, item.Type, item.Title, item.URL, boolToInt(item.Published), boolToInt(item.Excluded),
		string(item.SyncStatus), item.SyncedAt, item.SyncError, now)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert content", Err: err}
	}
	return nil
}

// DeleteContent removes a content item
func (s *SQLiteStore) DeleteContent(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM content_items WHERE id = ?", id)
	if err != nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// ListContent returns all content items ordered by ID ascending
func (s *SQLiteStore) ListContent() []*models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, type, title, url, published, excluded, sync_status, synced_at, sync_error, updated_at
		FROM content_items ORDER BY id ASC
	`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	return collectContentItems(rows)
}

// ListEligibleContent returns a page of published, non-excluded items of the
// given types, ordered by ID ascending.
func (s *SQLiteStore) ListEligibleContent(types []string, offset, limit int) ([]*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := eligibleQuery(`
		SELECT id, type, title, url, published, excluded, sync_status, synced_at, sync_error, updated_at
		FROM content_items`, types)
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list eligible content", Err: err}
	}
	defer rows.Close()

	return collectContentItems(rows), nil
}

// CountEligibleContent returns the number of published, non-excluded items
// of the given types
func (s *SQLiteStore) CountEligibleContent(types []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := eligibleQuery("SELECT COUNT(*) FROM content_items", types)

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count eligible content", Err: err}
	}
	return count, nil
}

func eligibleQuery(prefix string, types []string) (string, []interface{}) {
	query := prefix + " WHERE published = 1 AND excluded = 0"
	args := make([]interface{}, 0, len(types))
	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		query += fmt.Sprintf(" AND type IN (%s)", placeholders)
		for _, t := range types {
			args = append(args, t)
		}
	}
	return query, args
}

// Sync state operations

// MarkContentSynced records a successful push and clears any prior error
func (s *SQLiteStore) MarkContentSynced(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE content_items
		SET sync_status = ?, synced_at = ?, sync_error = '', updated_at = ?
		WHERE id = ?
	`, string(models.SyncSynced), at, time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "mark content synced", Err: err}
	}
	return s.logEvent(id, models.SyncSynced, "")
}

// MarkContentError records a failed push; the item remains retryable
func (s *SQLiteStore) MarkContentError(id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE content_items
		SET sync_status = ?, sync_error = ?, updated_at = ?
		WHERE id = ?
	`, string(models.SyncError), msg, time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "mark content error", Err: err}
	}
	return s.logEvent(id, models.SyncError, msg)
}

// SetContentExcluded flips the exclusion flag for an item
func (s *SQLiteStore) SetContentExcluded(id int64, excluded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE content_items SET excluded = ?, updated_at = ? WHERE id = ?
	`, boolToInt(excluded), time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set content excluded", Err: err}
	}
	return nil
}

func (s *SQLiteStore) logEvent(itemID int64, status models.SyncStatus, msg string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_events (item_id, status, message) VALUES (?, ?, ?)
	`, itemID, string(status), msg)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "log sync event", Err: err}
	}
	return nil
}

// ListSyncEvents returns the most recent sync events, newest first
func (s *SQLiteStore) ListSyncEvents(limit int) []*models.SyncEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, item_id, status, message, created_at
		FROM sync_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]*models.SyncEvent, 0, limit)
	for rows.Next() {
		var ev models.SyncEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.ItemID, &status, &ev.Message, &ev.CreatedAt); err != nil {
			continue
		}
		ev.Status = models.SyncStatus(status)
		result = append(result, &ev)
	}
	return result
}

// Clear removes all data from the store
func (s *SQLiteStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec("DELETE FROM content_items")
	_, _ = s.db.Exec("DELETE FROM sync_events")
	_, _ = s.db.Exec("DELETE FROM settings")
}

// Stats returns statistics about the store
func (s *SQLiteStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats StoreStats
	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN sync_status = 'synced' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(excluded), 0)
		FROM content_items
	`)
	_ = row.Scan(&stats.ContentCount, &stats.SyncedCount, &stats.ErrorCount, &stats.ExcludedCount)
	return stats
}

// scanner matches sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanContentItem(row scanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var published, excluded int
	var status string
	var syncedAt sql.NullTime

	err := row.Scan(&item.ID, &item.Type, &item.Title, &item.URL, &published, &excluded,
		&status, &syncedAt, &item.SyncError, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Published = published == 1
	item.Excluded = excluded == 1
	item.SyncStatus = models.SyncStatus(status)
	if syncedAt.Valid {
		t := syncedAt.Time
		item.SyncedAt = &t
	}
	return &item, nil
}

func collectContentItems(rows *sql.Rows) []*models.ContentItem {
	result := make([]*models.ContentItem, 0)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			continue
		}
		result = append(result, item)
	}
	return result
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
