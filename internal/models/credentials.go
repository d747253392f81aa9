package models

import "time"

// Credentials stores the access/refresh token pair issued by the chatbot
// platform. ExpiresAt already includes the safety margin subtracted at save
// time, so `now >= ExpiresAt` means the token must be refreshed.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the access token should no longer be used.
func (c Credentials) Expired(now time.Time) bool {
	return c.AccessToken == "" || (c.ExpiresAt > 0 && now.Unix() >= c.ExpiresAt)
}

// UserInfo holds the platform user/team metadata returned by login, refresh
// and team switch. It is replaced wholesale on each of those calls.
type UserInfo struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	TeamID    string `json:"team_id,omitempty"`
	TeamAlias string `json:"team_alias,omitempty"`
	TeamName  string `json:"team_name,omitempty"`
}
