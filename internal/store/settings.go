package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Setting represents a key-value setting stored in SQLite
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingsStore provides methods for managing persisted settings: platform
// credentials, selection state (team, knowledge source, channel) and sync
// policy flags.
type SettingsStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	GetInt(key string, defaultVal int) int
	SetInt(key string, value int) error
	GetInt64(key string, defaultVal int64) int64
	SetInt64(key string, value int64) error
	GetBool(key string, defaultVal bool) bool
	SetBool(key string, value bool) error
	GetJSON(key string, target interface{}) bool
	SetJSON(key string, value interface{}) error
}

// SQLiteSettingsStore implements SettingsStore using SQLite
type SQLiteSettingsStore struct {
	db *sql.DB
}

// NewSQLiteSettingsStore creates a new settings store
func NewSQLiteSettingsStore(db *sql.DB) (*SQLiteSettingsStore, error) {
	store := &SQLiteSettingsStore{db: db}

	if err := store.createTable(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteSettingsStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// Get retrieves a setting value
func (s *SQLiteSettingsStore) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set sets a setting value
func (s *SQLiteSettingsStore) Set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`
	now := time.Now()
	_, err := s.db.Exec(query, key, value, now, value, now)
	return err
}

// Delete removes a setting
func (s *SQLiteSettingsStore) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// GetInt retrieves an integer setting
func (s *SQLiteSettingsStore) GetInt(key string, defaultVal int) int {
	value, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetInt sets an integer setting
func (s *SQLiteSettingsStore) SetInt(key string, value int) error {
	return s.Set(key, fmt.Sprintf("%d", value))
}

// GetInt64 retrieves a 64-bit integer setting (token expiry timestamps)
func (s *SQLiteSettingsStore) GetInt64(key string, defaultVal int64) int64 {
	value, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	var result int64
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetInt64 sets a 64-bit integer setting
func (s *SQLiteSettingsStore) SetInt64(key string, value int64) error {
	return s.Set(key, fmt.Sprintf("%d", value))
}

// GetBool retrieves a bool setting
func (s *SQLiteSettingsStore) GetBool(key string, defaultVal bool) bool {
	value, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	return value == "true" || value == "1" || value == "yes"
}

// SetBool sets a bool setting
func (s *SQLiteSettingsStore) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

// GetJSON decodes a JSON-encoded setting into target
func (s *SQLiteSettingsStore) GetJSON(key string, target interface{}) bool {
	value, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(value), target) == nil
}

// SetJSON stores a value JSON-encoded
func (s *SQLiteSettingsStore) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(key, string(data))
}

// Constants for setting keys
const (
	SettingAccessToken      = "platform_access_token"
	SettingRefreshToken     = "platform_refresh_token"
	SettingTokenExpiry      = "platform_token_expiry"
	SettingUserInfo         = "platform_user_info"
	SettingSelectedTeam     = "selected_team_alias"
	SettingKnowledgeSource  = "knowledge_source_alias"
	SettingSelectedChannel  = "selected_channel_alias"
	SettingInstalledChannel = "installed_channel_alias"
	SettingAutoSync         = "auto_sync"
	SettingSyncContentTypes = "sync_content_types"
	SettingWidgetTokenID    = "widget_token_id"
	SettingThemeColor       = "theme_color"
	SettingSocialMedia      = "social_media"
)
