package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemorySettingsStore implements SettingsStore using an in-memory map.
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettingsStore creates a new in-memory settings store.
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		values: make(map[string]string),
	}
}

// Get retrieves a setting value.
func (m *MemorySettingsStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	return value, ok
}

// Set sets a setting value.
func (m *MemorySettingsStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Delete removes a setting.
func (m *MemorySettingsStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// GetInt retrieves an integer setting.
func (m *MemorySettingsStore) GetInt(key string, defaultVal int) int {
	value, ok := m.Get(key)
	if !ok {
		return defaultVal
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetInt sets an integer setting.
func (m *MemorySettingsStore) SetInt(key string, value int) error {
	return m.Set(key, fmt.Sprintf("%d", value))
}

// GetInt64 retrieves a 64-bit integer setting.
func (m *MemorySettingsStore) GetInt64(key string, defaultVal int64) int64 {
	value, ok := m.Get(key)
	if !ok {
		return defaultVal
	}
	var result int64
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetInt64 sets a 64-bit integer setting.
func (m *MemorySettingsStore) SetInt64(key string, value int64) error {
	return m.Set(key, fmt.Sprintf("%d", value))
}

// GetBool retrieves a bool setting.
func (m *MemorySettingsStore) GetBool(key string, defaultVal bool) bool {
	value, ok := m.Get(key)
	if !ok {
		return defaultVal
	}
	return value == "true" || value == "1" || value == "yes"
}

// SetBool sets a bool setting.
func (m *MemorySettingsStore) SetBool(key string, value bool) error {
	if value {
		return m.Set(key, "true")
	}
	return m.Set(key, "false")
}

// GetJSON decodes a JSON-encoded setting into target.
func (m *MemorySettingsStore) GetJSON(key string, target interface{}) bool {
	value, ok := m.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(value), target) == nil
}

// SetJSON stores a value JSON-encoded.
func (m *MemorySettingsStore) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(key, string(data))
}

// Clear removes all settings.
func (m *MemorySettingsStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}

var _ SettingsStore = (*MemorySettingsStore)(nil)
