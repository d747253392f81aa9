package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlink/chatlink/internal/store"
)

// TestFullSyncFlow walks the whole connector flow over HTTP: login,
// ingest content, select a knowledge source and step the sync until
// every eligible item has been pushed upstream.
func TestFullSyncFlow(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodPost, "/admin/auth/login", map[string]interface{}{
		"email":    "ada@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 12 published posts plus a draft and an excluded page
	for i := 1; i <= 12; i++ {
		w = env.do(t, http.MethodPost, "/admin/content", map[string]interface{}{
			"id":        i,
			"type":      "post",
			"title":     "Post",
			"url":       "https://example.com/post",
			"published": true,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w = env.do(t, http.MethodPost, "/admin/content", map[string]interface{}{
		"id": 13, "type": "post", "title": "Draft", "url": "https://example.com/draft", "published": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/admin/content", map[string]interface{}{
		"id": 14, "type": "page", "title": "Hidden", "url": "https://example.com/hidden", "published": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/admin/content/14/exclude", map[string]interface{}{"excluded": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/admin/knowledge-sources/select", map[string]interface{}{"alias": "ks-1"})
	require.Equal(t, http.StatusOK, w.Code)

	offset := 0
	steps := 0
	for {
		w = env.do(t, http.MethodPost, "/admin/sync/step", map[string]interface{}{
			"offset":    offset,
			"page_size": 5,
		})
		require.Equal(t, http.StatusOK, w.Code)
		data := env.data(t, w)
		steps++

		if data["complete"].(bool) {
			assert.Equal(t, float64(12), data["synced"])
			assert.Equal(t, float64(12), data["total"])
			break
		}
		offset = int(data["next_offset"].(float64))
		require.Less(t, steps, 10, "sync should terminate")
	}

	// 12 eligible items in pages of 5 means 3 upstream batches
	assert.Equal(t, 3, steps)
	assert.Equal(t, int32(12), env.TrainingURLs.Load())

	stats := env.Store.Stats()
	assert.Equal(t, 14, stats.ContentCount)
	assert.Equal(t, 12, stats.SyncedCount)
	assert.Equal(t, 1, stats.ExcludedCount)

	events := env.Store.ListSyncEvents(20)
	assert.Len(t, events, 12)
}

// TestStateSurvivesRestart reopens the database with a fresh server
// stack and verifies credentials and content carry over.
func TestStateSurvivesRestart(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodPost, "/admin/auth/login", map[string]interface{}{
		"email":    "ada@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/admin/content", map[string]interface{}{
		"id": 1, "type": "post", "title": "Post", "url": "https://example.com/1", "published": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/admin/knowledge-sources/select", map[string]interface{}{"alias": "ks-1"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, env.Store.Close())

	reopened := openEnv(t, env.DBPath)

	w = reopened.do(t, http.MethodGet, "/admin/auth/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := reopened.data(t, w)
	assert.Equal(t, true, data["authenticated"])

	alias, ok := reopened.Store.Settings().Get(store.SettingKnowledgeSource)
	require.True(t, ok)
	assert.Equal(t, "ks-1", alias)

	assert.Equal(t, 1, reopened.Store.Stats().ContentCount)
}

// TestWidgetLifecycle drives channel selection and widget install over
// HTTP and checks the public embed endpoint reflects each state.
func TestWidgetLifecycle(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/widget.js", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do(t, http.MethodPost, "/admin/auth/login", map[string]interface{}{
		"email":    "ada@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/admin/channels/select", map[string]interface{}{"alias": "ch-1"})
	require.Equal(t, http.StatusOK, w.Code)

	// Selection alone must not install the widget
	w = env.do(t, http.MethodGet, "/widget.js", nil)
	assert.Empty(t, w.Body.String())

	w = env.do(t, http.MethodPost, "/admin/widget/install", map[string]interface{}{"channel_alias": "ch-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/widget.js", nil)
	assert.Contains(t, w.Body.String(), `data-token="ch-1"`)

	w = env.do(t, http.MethodPost, "/admin/widget/uninstall", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/widget.js", nil)
	assert.Empty(t, w.Body.String())

	// Channel selection survives uninstall
	alias, ok := env.Store.Settings().Get(store.SettingSelectedChannel)
	require.True(t, ok)
	assert.Equal(t, "ch-1", alias)
}
