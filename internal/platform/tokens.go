package platform

import (
	"time"

	"github.com/chatlink/chatlink/internal/models"
	"github.com/chatlink/chatlink/internal/store"
)

// expiryMargin is subtracted from the reported token lifetime so the client
// refreshes before the platform actually rejects the token.
const expiryMargin = 60 * time.Second

// TokenStore persists platform credentials in the settings store.
type TokenStore struct {
	settings store.SettingsStore
	now      func() time.Time
}

// NewTokenStore creates a token store over the given settings store.
func NewTokenStore(settings store.SettingsStore) *TokenStore {
	return &TokenStore{
		settings: settings,
		now:      time.Now,
	}
}

// Load returns the stored credentials. Missing tokens come back as zero
// values, which Credentials.Expired treats as expired.
func (ts *TokenStore) Load() models.Credentials {
	creds := models.Credentials{}
	if v, ok := ts.settings.Get(store.SettingAccessToken); ok {
		creds.AccessToken = v
	}
	if v, ok := ts.settings.Get(store.SettingRefreshToken); ok {
		creds.RefreshToken = v
	}
	creds.ExpiresAt = ts.settings.GetInt64(store.SettingTokenExpiry, 0)
	return creds
}

// Save stores a token pair. expiresIn is the lifetime in seconds reported by
// the platform; the stored expiry is brought forward by the margin.
func (ts *TokenStore) Save(accessToken, refreshToken string, expiresIn int64) error {
	if err := ts.settings.Set(store.SettingAccessToken, accessToken); err != nil {
		return err
	}
	if err := ts.settings.Set(store.SettingRefreshToken, refreshToken); err != nil {
		return err
	}
	expiresAt := ts.now().Add(time.Duration(expiresIn)*time.Second - expiryMargin).Unix()
	return ts.settings.SetInt64(store.SettingTokenExpiry, expiresAt)
}

// Clear removes the stored tokens and cached user info. Clearing an already
// empty store is a no-op.
func (ts *TokenStore) Clear() error {
	if err := ts.settings.Delete(store.SettingAccessToken); err != nil {
		return err
	}
	if err := ts.settings.Delete(store.SettingRefreshToken); err != nil {
		return err
	}
	if err := ts.settings.Delete(store.SettingTokenExpiry); err != nil {
		return err
	}
	return ts.settings.Delete(store.SettingUserInfo)
}

// SaveUserInfo caches the authenticated user's profile.
func (ts *TokenStore) SaveUserInfo(info *models.UserInfo) error {
	return ts.settings.SetJSON(store.SettingUserInfo, info)
}

// LoadUserInfo returns the cached profile, if any.
func (ts *TokenStore) LoadUserInfo() (*models.UserInfo, bool) {
	var info models.UserInfo
	if !ts.settings.GetJSON(store.SettingUserInfo, &info) {
		return nil, false
	}
	return &info, true
}
