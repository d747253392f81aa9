package platform

import (
	"context"
	"net/http"
	"strings"

	"github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/models"
	"github.com/chatlink/chatlink/internal/store"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type loginResponse struct {
	tokenResponse
	User models.UserInfo `json:"user"`
}

// Login authenticates with the platform and persists the resulting token
// pair and user profile.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*models.UserInfo, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &errors.ErrValidation{Field: "email"}
	}
	if password == "" {
		return nil, &errors.ErrValidation{Field: "password"}
	}

	var result loginResponse
	err := c.do(ctx, http.MethodPost, "auth/login/", map[string]interface{}{
		"email":       email,
		"password":    password,
		"remember_me": rememberMe,
	}, "", &result)
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Save(result.AccessToken, result.RefreshToken, result.ExpiresIn); err != nil {
		return nil, err
	}
	if err := c.tokens.SaveUserInfo(&result.User); err != nil {
		return nil, err
	}
	c.logger.InfoWithContext(ctx, "logged in to platform", "email", email)
	return &result.User, nil
}

// Logout discards the stored session. The platform has no logout endpoint;
// dropping the tokens is sufficient.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// CurrentUser fetches the authenticated user's profile and refreshes the
// cached copy.
func (c *Client) CurrentUser(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.request(ctx, http.MethodGet, "auth/me/", nil, &user); err != nil {
		return nil, err
	}
	if err := c.tokens.SaveUserInfo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TestConnection verifies the stored session against the platform.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.CurrentUser(ctx)
	return err
}

type knowledgeSourceList struct {
	KnowledgeSources []models.KnowledgeSource `json:"knowledge_sources"`
}

// ListKnowledgeSources returns the active knowledge sources for the current
// team.
func (c *Client) ListKnowledgeSources(ctx context.Context) ([]models.KnowledgeSource, error) {
	ctx, cancel := c.quickCtx(ctx)
	defer cancel()

	var result knowledgeSourceList
	err := c.request(ctx, http.MethodPost, "knowledge-sources/", map[string]string{
		"status": "active",
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.KnowledgeSources, nil
}

// GetKnowledgeSource returns a single knowledge source by alias.
func (c *Client) GetKnowledgeSource(ctx context.Context, alias string) (*models.KnowledgeSource, error) {
	if alias == "" {
		return nil, &errors.ErrValidation{Field: "knowledge_source_alias"}
	}
	var ks models.KnowledgeSource
	if err := c.request(ctx, http.MethodGet, "knowledge-sources/"+alias+"/", nil, &ks); err != nil {
		return nil, err
	}
	return &ks, nil
}

// CreateKnowledgeSource creates a new knowledge source on the platform.
// Create shares the list path; the platform tells them apart by body. An
// empty integrationID is omitted.
func (c *Client) CreateKnowledgeSource(ctx context.Context, name, llmType, crawlType, integrationID string) (*models.KnowledgeSource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &errors.ErrValidation{Field: "name"}
	}
	payload := map[string]string{
		"name":       name,
		"llm_type":   llmType,
		"crawl_type": crawlType,
	}
	if integrationID != "" {
		payload["integration_id"] = integrationID
	}
	var ks models.KnowledgeSource
	if err := c.request(ctx, http.MethodPost, "knowledge-sources/", payload, &ks); err != nil {
		return nil, err
	}
	return &ks, nil
}

// AddTrainingURLs pushes a batch of content URLs into a knowledge source for
// training.
func (c *Client) AddTrainingURLs(ctx context.Context, alias string, urls []string) error {
	if alias == "" {
		return &errors.ErrValidation{Field: "knowledge_source_alias"}
	}
	if len(urls) == 0 {
		return &errors.ErrValidation{Field: "urls"}
	}
	return c.request(ctx, http.MethodPost, "knowledge-sources/"+alias+"/training/", map[string]interface{}{
		"urls": urls,
	}, nil)
}

type trainingList struct {
	Entries []models.TrainingEntry `json:"training_contents"`
}

// ListTrainingContent returns the training entries of a knowledge source.
func (c *Client) ListTrainingContent(ctx context.Context, alias string) ([]models.TrainingEntry, error) {
	if alias == "" {
		return nil, &errors.ErrValidation{Field: "knowledge_source_alias"}
	}
	var result trainingList
	if err := c.request(ctx, http.MethodGet, "knowledge-sources/"+alias+"/training/", nil, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// DeleteTrainingContent removes training entries from a knowledge source.
// The platform deletes one entry per call, so the ids are walked in order
// and the first failure stops the loop.
func (c *Client) DeleteTrainingContent(ctx context.Context, alias string, ids []string) error {
	if alias == "" {
		return &errors.ErrValidation{Field: "knowledge_source_alias"}
	}
	for _, id := range ids {
		if id == "" {
			return &errors.ErrValidation{Field: "id"}
		}
		if err := c.request(ctx, http.MethodDelete, "knowledge-sources/"+alias+"/training/"+id+"/", nil, nil); err != nil {
			return err
		}
	}
	return nil
}

type teamList struct {
	Teams []models.Team `json:"teams"`
}

// ListTeams returns the teams the authenticated user belongs to.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	ctx, cancel := c.quickCtx(ctx)
	defer cancel()

	var result teamList
	if err := c.request(ctx, http.MethodPost, "teams/", nil, &result); err != nil {
		return nil, err
	}
	return result.Teams, nil
}

// SwitchTeam changes the active team. The platform issues a fresh token pair
// scoped to the new team, so the stored session is replaced, and the
// knowledge-source selection from the old team is dropped.
func (c *Client) SwitchTeam(ctx context.Context, teamAlias string) (*models.UserInfo, error) {
	if teamAlias == "" {
		return nil, &errors.ErrValidation{Field: "team_alias"}
	}

	var result loginResponse
	err := c.request(ctx, http.MethodPost, "teams/switch/", map[string]string{
		"team_alias": teamAlias,
	}, &result)
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Save(result.AccessToken, result.RefreshToken, result.ExpiresIn); err != nil {
		return nil, err
	}
	if err := c.tokens.SaveUserInfo(&result.User); err != nil {
		return nil, err
	}
	if err := c.settings.Set(store.SettingSelectedTeam, teamAlias); err != nil {
		return nil, err
	}
	// The selection belongs to the old team and is meaningless now.
	if err := c.settings.Delete(store.SettingKnowledgeSource); err != nil {
		return nil, err
	}
	c.logger.InfoWithContext(ctx, "switched team", "team", teamAlias)
	return &result.User, nil
}

type channelList struct {
	Channels []models.Channel `json:"channels"`
}

// ListChannels returns the chat channels configured for the current team.
func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	ctx, cancel := c.quickCtx(ctx)
	defer cancel()

	var result channelList
	if err := c.request(ctx, http.MethodPost, "channels/", nil, &result); err != nil {
		return nil, err
	}
	return result.Channels, nil
}

// GetChannel returns a single channel by alias.
func (c *Client) GetChannel(ctx context.Context, alias string) (*models.Channel, error) {
	if alias == "" {
		return nil, &errors.ErrValidation{Field: "channel_alias"}
	}
	var ch models.Channel
	if err := c.request(ctx, http.MethodGet, "channels/"+alias+"/", nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}
