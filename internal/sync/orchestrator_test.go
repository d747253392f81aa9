package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	cerrors "github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/models"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainingServer struct {
	fail     atomic.Bool
	batches  [][]string
	batchMu  chan struct{}
	received atomic.Int32
}

func newSyncFixture(t *testing.T) (*Orchestrator, *store.MemoryStore, *trainingServer) {
	t.Helper()

	ts := &trainingServer{batchMu: make(chan struct{}, 1)}
	ts.batchMu <- struct{}{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"message": "training service unavailable"},
			})
			return
		}

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		<-ts.batchMu
		ts.batches = append(ts.batches, body["urls"])
		ts.batchMu <- struct{}{}
		ts.received.Add(int32(len(body["urls"])))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
		})
	}))
	t.Cleanup(srv.Close)

	memStore := store.NewMemoryStore()
	t.Cleanup(func() { memStore.Close() })

	client := platform.NewClient(srv.URL, memStore.Settings())
	require.NoError(t, client.Tokens().Save("at-1", "rt-1", 3600))
	require.NoError(t, memStore.Settings().Set(store.SettingKnowledgeSource, "ks-1"))

	return NewOrchestrator(memStore, client), memStore, ts
}

func seedContent(t *testing.T, s *store.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.SetContent(&models.ContentItem{
			Type:      "post",
			Title:     "Post",
			URL:       "https://example.com/post",
			Published: true,
		}))
	}
}

func TestStepPaginatesToCompletion(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)
	seedContent(t, memStore, 25)

	ctx := context.Background()
	types := []string{"post"}

	res, err := orch.Step(ctx, 0, 10, types)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Synced)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 10, res.NextOffset)
	assert.False(t, res.Complete)

	res, err = orch.Step(ctx, res.NextOffset, 10, types)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Synced)
	assert.False(t, res.Complete)

	res, err = orch.Step(ctx, res.NextOffset, 10, types)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Synced)
	assert.Equal(t, 25, res.NextOffset)
	assert.True(t, res.Complete)

	assert.Equal(t, int32(25), ts.received.Load())
	assert.Len(t, ts.batches, 3)
	assert.Len(t, ts.batches[2], 5)

	stats := memStore.Stats()
	assert.Equal(t, 25, stats.SyncedCount)
}

func TestStepSkipsExcludedAndDrafts(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)
	seedContent(t, memStore, 3)
	require.NoError(t, memStore.SetContent(&models.ContentItem{
		Type: "post", URL: "https://example.com/excluded", Published: true, Excluded: true,
	}))
	require.NoError(t, memStore.SetContent(&models.ContentItem{
		Type: "post", URL: "https://example.com/draft", Published: false,
	}))

	res, err := orch.Step(context.Background(), 0, 10, []string{"post"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.Complete)
	assert.Equal(t, int32(3), ts.received.Load())

	for _, batch := range ts.batches {
		for _, url := range batch {
			assert.NotContains(t, url, "excluded")
			assert.NotContains(t, url, "draft")
		}
	}
}

func TestStepFailureLeavesOffsetRetryable(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)
	seedContent(t, memStore, 15)

	ctx := context.Background()
	types := []string{"post"}

	res, err := orch.Step(ctx, 0, 10, types)
	require.NoError(t, err)
	require.Equal(t, 10, res.NextOffset)

	ts.fail.Store(true)
	_, err = orch.Step(ctx, res.NextOffset, 10, types)
	require.Error(t, err)

	// Failed page items are marked but remain eligible
	stats := memStore.Stats()
	assert.Equal(t, 10, stats.SyncedCount)
	assert.Equal(t, 5, stats.ErrorCount)

	// Retrying the same offset finishes the run
	ts.fail.Store(false)
	res, err = orch.Step(ctx, res.NextOffset, 10, types)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Synced)
	assert.True(t, res.Complete)

	stats = memStore.Stats()
	assert.Equal(t, 15, stats.SyncedCount)
	assert.Equal(t, 0, stats.ErrorCount)
}

func TestStepRequiresKnowledgeSourceSelection(t *testing.T) {
	orch, memStore, _ := newSyncFixture(t)
	seedContent(t, memStore, 1)
	require.NoError(t, memStore.Settings().Delete(store.SettingKnowledgeSource))

	_, err := orch.Step(context.Background(), 0, 10, []string{"post"})
	var verr *cerrors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "knowledge_source_alias", verr.Field)
}

func TestStepValidation(t *testing.T) {
	orch, _, _ := newSyncFixture(t)

	_, err := orch.Step(context.Background(), -1, 10, nil)
	var verr *cerrors.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = orch.Step(context.Background(), 0, 0, nil)
	require.ErrorAs(t, err, &verr)
}

func TestStepEmptyStoreCompletesImmediately(t *testing.T) {
	orch, _, ts := newSyncFixture(t)

	res, err := orch.Step(context.Background(), 0, 10, []string{"post"})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Zero(t, res.Total)
	assert.Zero(t, ts.received.Load())
}

func TestSyncItem(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/one", Published: true}
	require.NoError(t, memStore.SetContent(item))

	require.NoError(t, orch.SyncItem(context.Background(), item.ID))
	assert.Equal(t, int32(1), ts.received.Load())

	got, _ := memStore.GetContent(item.ID)
	assert.Equal(t, models.SyncSynced, got.SyncStatus)
}

func TestSyncItemIneligible(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/draft", Published: false}
	require.NoError(t, memStore.SetContent(item))

	err := orch.SyncItem(context.Background(), item.ID)
	require.Error(t, err)
	assert.Zero(t, ts.received.Load())

	err = orch.SyncItem(context.Background(), 9999)
	var verr *cerrors.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestOnContentPublishedAutoSync(t *testing.T) {
	orch, memStore, ts := newSyncFixture(t)

	item := &models.ContentItem{Type: "post", URL: "https://example.com/new", Published: true}
	require.NoError(t, memStore.SetContent(item))

	// Disabled: nothing is pushed
	orch.OnContentPublished(context.Background(), item)
	assert.Zero(t, ts.received.Load())

	require.NoError(t, memStore.Settings().SetBool(store.SettingAutoSync, true))
	orch.OnContentPublished(context.Background(), item)
	assert.Equal(t, int32(1), ts.received.Load())
}
