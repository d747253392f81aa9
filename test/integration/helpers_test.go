package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/chatlink/chatlink/internal/api"
	"github.com/chatlink/chatlink/internal/config"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
	syncer "github.com/chatlink/chatlink/internal/sync"
	"github.com/chatlink/chatlink/internal/widget"
)

// testEnv holds a server wired against a real SQLite database and a
// stubbed upstream platform.
type testEnv struct {
	Server       *api.Server
	Store        *store.SQLiteStore
	DBPath       string
	Upstream     *httptest.Server
	TrainingURLs *atomic.Int32
}

// newPlatformStub fakes the upstream platform API and counts training
// URLs it receives.
func newPlatformStub(t *testing.T, trainingURLs *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		success := func(data interface{}) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "success", "data": data})
		}
		switch r.URL.Path {
		case "/auth/login/":
			success(map[string]interface{}{
				"access_token":  "at-1",
				"refresh_token": "rt-1",
				"expires_in":    3600,
				"user":          map[string]string{"name": "Ada", "email": "ada@example.com"},
			})
		case "/auth/me/":
			success(map[string]string{"name": "Ada", "email": "ada@example.com"})
		case "/knowledge-sources/":
			success(map[string]interface{}{
				"knowledge_sources": []map[string]string{{"knowledge_source_alias": "ks-1", "name": "Docs"}},
			})
		case "/channels/":
			success(map[string]interface{}{
				"channels": []map[string]string{{"alias": "ch-1", "name": "Web"}},
			})
		case "/knowledge-sources/ks-1/training/":
			var payload struct {
				URLs []string `json:"urls"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			trainingURLs.Add(int32(len(payload.URLs)))
			success(nil)
		default:
			t.Fatalf("unexpected platform path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupEnv builds the full stack on a fresh temp database.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "chatlink.db")
	return openEnv(t, dbPath)
}

// openEnv builds the stack on an existing database path, used to
// exercise restarts.
func openEnv(t *testing.T, dbPath string) *testEnv {
	t.Helper()

	counter := &atomic.Int32{}
	upstream := newPlatformStub(t, counter)

	cfg := config.Default()
	cfg.Platform.BaseURL = upstream.URL

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := platform.NewClient(cfg.Platform.BaseURL, st.Settings())
	orch := syncer.NewOrchestrator(st, client)
	inj := widget.NewInjector(st.Settings(), cfg.Widget.ScriptURL)

	return &testEnv{
		Server:       api.NewServer(cfg, st, client, orch, inj),
		Store:        st,
		DBPath:       dbPath,
		Upstream:     upstream,
		TrainingURLs: counter,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.Server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}
