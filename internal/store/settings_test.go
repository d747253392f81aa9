package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settingsStores returns both implementations so every test runs against each
func settingsStores(t *testing.T) map[string]SettingsStore {
	t.Helper()
	sqlite := newTestSQLiteStore(t)
	return map[string]SettingsStore{
		"sqlite": sqlite.Settings(),
		"memory": NewMemorySettingsStore(),
	}
}

func TestSettingsGetSet(t *testing.T) {
	for name, s := range settingsStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := s.Get(SettingAccessToken)
			assert.False(t, ok)

			require.NoError(t, s.Set(SettingAccessToken, "tok-123"))
			val, ok := s.Get(SettingAccessToken)
			require.True(t, ok)
			assert.Equal(t, "tok-123", val)

			require.NoError(t, s.Set(SettingAccessToken, "tok-456"))
			val, _ = s.Get(SettingAccessToken)
			assert.Equal(t, "tok-456", val)
		})
	}
}

func TestSettingsDelete(t *testing.T) {
	for name, s := range settingsStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(SettingSelectedChannel, "ch-1"))
			require.NoError(t, s.Delete(SettingSelectedChannel))
			_, ok := s.Get(SettingSelectedChannel)
			assert.False(t, ok)

			// Deleting a missing key is not an error
			require.NoError(t, s.Delete(SettingSelectedChannel))
		})
	}
}

func TestSettingsTypedAccessors(t *testing.T) {
	for name, s := range settingsStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 42, s.GetInt("missing", 42))
			require.NoError(t, s.SetInt("num", 7))
			assert.Equal(t, 7, s.GetInt("num", 0))

			assert.Equal(t, int64(99), s.GetInt64("missing", 99))
			require.NoError(t, s.SetInt64(SettingTokenExpiry, 1735689600))
			assert.Equal(t, int64(1735689600), s.GetInt64(SettingTokenExpiry, 0))

			assert.True(t, s.GetBool("missing", true))
			require.NoError(t, s.SetBool(SettingAutoSync, true))
			assert.True(t, s.GetBool(SettingAutoSync, false))
		})
	}
}

func TestSettingsJSON(t *testing.T) {
	type userInfo struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	for name, s := range settingsStores(t) {
		t.Run(name, func(t *testing.T) {
			var out userInfo
			assert.False(t, s.GetJSON(SettingUserInfo, &out))

			require.NoError(t, s.SetJSON(SettingUserInfo, userInfo{Name: "Ada", Email: "ada@example.com"}))
			require.True(t, s.GetJSON(SettingUserInfo, &out))
			assert.Equal(t, "Ada", out.Name)
			assert.Equal(t, "ada@example.com", out.Email)
		})
	}
}
