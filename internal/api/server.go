package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatlink/chatlink/internal/config"
	"github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/logging"
	"github.com/chatlink/chatlink/internal/metrics"
	"github.com/chatlink/chatlink/internal/models"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
	syncer "github.com/chatlink/chatlink/internal/sync"
	"github.com/chatlink/chatlink/internal/widget"
)

// Server represents the admin HTTP API server
type Server struct {
	router       *gin.Engine
	config       config.ServerConfig
	apiConfig    config.APIConfig
	syncConfig   config.SyncConfig
	store        store.Store
	client       *platform.Client
	orchestrator *syncer.Orchestrator
	injector     *widget.Injector
	metrics      *metrics.Metrics
	logger       *logging.Logger
	rateLimiter  *IPRateLimiter
	nonces       *NonceIssuer
	httpServer   *http.Server
	tlsConfig    config.TLSConfig
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new admin API server
func NewServer(cfg config.Config, s store.Store, client *platform.Client, orch *syncer.Orchestrator, inj *widget.Injector) *Server {
	gin.SetMode(gin.ReleaseMode)

	m := metrics.NewMetrics("chatlink")
	logger := logging.NewLogger()

	requestsPerMinute := cfg.API.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	burst := cfg.API.RateLimit.Burst
	if burst <= 0 {
		burst = 60
	}
	rateLimiter := newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst)

	server := &Server{
		router:       gin.New(),
		config:       cfg.Server,
		apiConfig:    cfg.API,
		syncConfig:   cfg.Sync,
		store:        s,
		client:       client,
		orchestrator: orch,
		injector:     inj,
		metrics:      m,
		logger:       logger,
		rateLimiter:  rateLimiter,
		nonces:       NewNonceIssuer(cfg.API.Nonce.Secret, cfg.API.Nonce.TTL),
		tlsConfig:    cfg.Server.TLS,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(rateLimiter))
	server.router.Use(bodyLimitMiddleware(1 << 20))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/health", s.handleHealth)

	// Widget loader - public, the site front-end embeds this
	s.router.GET("/widget.js", s.handleWidgetScript)

	authMiddleware := APIKeyAuth(s.apiConfig.Auth.APIKeys, s.apiConfig.Auth.HeaderName, s.logger)

	admin := s.router.Group("/admin")
	admin.Use(authMiddleware)

	admin.GET("/nonce", s.handleNonce)
	admin.GET("/auth/status", s.handleAuthStatus)
	admin.GET("/knowledge-sources", s.handleListKnowledgeSources)
	admin.GET("/teams", s.handleListTeams)
	admin.GET("/channels", s.handleListChannels)
	admin.GET("/content", s.handleListContent)
	admin.GET("/sync/events", s.handleListSyncEvents)
	admin.GET("/settings", s.handleGetSettings)

	// Mutating endpoints additionally require a fresh nonce token
	mutating := admin.Group("")
	mutating.Use(NonceMiddleware(s.nonces, s.logger))
	{
		mutating.POST("/auth/login", s.handleLogin)
		mutating.POST("/auth/logout", s.handleLogout)
		mutating.POST("/auth/test", s.handleTestConnection)
		mutating.POST("/knowledge-sources", s.handleCreateKnowledgeSource)
		mutating.POST("/knowledge-sources/select", s.handleSelectKnowledgeSource)
		mutating.POST("/teams/switch", s.handleSwitchTeam)
		mutating.POST("/channels/select", s.handleSelectChannel)
		mutating.POST("/widget/install", s.handleWidgetInstall)
		mutating.POST("/widget/uninstall", s.handleWidgetUninstall)
		mutating.POST("/content", s.handleIngestContent)
		mutating.POST("/content/:id/exclude", s.handleExcludeContent)
		mutating.POST("/content/:id/sync", s.handleSyncItem)
		mutating.POST("/sync/step", s.handleSyncStep)
		mutating.POST("/settings", s.handleSaveSettings)
	}
}

// respondSuccess writes the uniform success envelope
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError writes the uniform error envelope
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "data": gin.H{"message": message}})
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch err.(type) {
	case *errors.ErrNotAuthenticated, *errors.ErrAuthExpired:
		return http.StatusUnauthorized
	case *errors.ErrValidation:
		return http.StatusBadRequest
	case *errors.ErrNetwork:
		return http.StatusBadGateway
	case *errors.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.tlsConfig.Enabled {
		return s.RunTLS()
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", s.tlsConfig.CertFile, "min_version", s.tlsConfig.MinVersion)

	srv, err := NewHTTPSServerWithConfig(addr, s.tlsConfig.CertFile, s.tlsConfig.KeyFile, s.tlsConfig.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	return s.httpServer.ListenAndServeTLS("", "")
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleWidgetScript serves the embed loader for the site front-end. When no
// widget is installed the script is empty so pages stay clean.
func (s *Server) handleWidgetScript(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	snippet, ok := s.injector.Snippet()
	if !ok {
		c.Data(http.StatusOK, "application/javascript", nil)
		return
	}
	script := fmt.Sprintf("(function(){document.body.insertAdjacentHTML('beforeend',%s);})();\n", strconv.Quote(snippet))
	c.Data(http.StatusOK, "application/javascript", []byte(script))
}

// handleNonce issues a short-lived token for mutating admin calls
func (s *Server) handleNonce(c *gin.Context) {
	token, err := s.nonces.Issue()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"nonce": token, "header": NonceHeader})
}

// LoginRequest carries platform credentials
type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// handleLogin authenticates against the platform
func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.client.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.logger.WarnWithContext(c.Request.Context(), "platform login failed", "error", err.Error())
		s.metrics.RecordError("login_error", "/admin/auth/login", "POST")
		respondError(c, statusForError(err), err.Error())
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleLogout drops the stored platform session
func (s *Server) handleLogout(c *gin.Context) {
	if err := s.client.Logout(); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.InfoWithContext(c.Request.Context(), "platform session cleared")
	respondSuccess(c, http.StatusOK, gin.H{"logged_out": true})
}

// handleAuthStatus reports the session state without hitting the platform
// unless a refresh is due
func (s *Server) handleAuthStatus(c *gin.Context) {
	authenticated := s.client.IsAuthenticated(c.Request.Context())
	resp := gin.H{"authenticated": authenticated}
	if user, ok := s.client.Tokens().LoadUserInfo(); ok {
		resp["user"] = user
	}
	if team, ok := s.store.Settings().Get(store.SettingSelectedTeam); ok {
		resp["selected_team"] = team
	}
	respondSuccess(c, http.StatusOK, resp)
}

// handleTestConnection verifies the stored session against the platform
func (s *Server) handleTestConnection(c *gin.Context) {
	if err := s.client.TestConnection(c.Request.Context()); err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"connected": true})
}

// handleListKnowledgeSources returns the team's knowledge sources and the
// current selection
func (s *Server) handleListKnowledgeSources(c *gin.Context) {
	sources, err := s.client.ListKnowledgeSources(c.Request.Context())
	if err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	selected, _ := s.store.Settings().Get(store.SettingKnowledgeSource)
	respondSuccess(c, http.StatusOK, gin.H{
		"knowledge_sources": sources,
		"selected":          selected,
	})
}

// CreateKnowledgeSourceRequest carries knowledge source creation parameters
type CreateKnowledgeSourceRequest struct {
	Name          string `json:"name" binding:"required"`
	LLMType       string `json:"llm_type"`
	CrawlType     string `json:"crawl_type"`
	IntegrationID string `json:"integration_id"`
}

// handleCreateKnowledgeSource creates a knowledge source on the platform
func (s *Server) handleCreateKnowledgeSource(c *gin.Context) {
	var req CreateKnowledgeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ks, err := s.client.CreateKnowledgeSource(c.Request.Context(), req.Name, req.LLMType, req.CrawlType, req.IntegrationID)
	if err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"knowledge_source": ks})
}

// SelectRequest carries an alias selection
type SelectRequest struct {
	Alias string `json:"alias" binding:"required"`
}

// handleSelectKnowledgeSource saves the knowledge source content is synced to
func (s *Server) handleSelectKnowledgeSource(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Settings().Set(store.SettingKnowledgeSource, req.Alias); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.InfoWithContext(c.Request.Context(), "knowledge source selected", "alias", req.Alias)
	respondSuccess(c, http.StatusOK, gin.H{"selected": req.Alias})
}

// handleListTeams returns the user's teams
func (s *Server) handleListTeams(c *gin.Context) {
	teams, err := s.client.ListTeams(c.Request.Context())
	if err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	selected, _ := s.store.Settings().Get(store.SettingSelectedTeam)
	respondSuccess(c, http.StatusOK, gin.H{"teams": teams, "selected": selected})
}

// SwitchTeamRequest carries the target team
type SwitchTeamRequest struct {
	TeamAlias string `json:"team_alias" binding:"required"`
}

// handleSwitchTeam switches the active platform team
func (s *Server) handleSwitchTeam(c *gin.Context) {
	var req SwitchTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.client.SwitchTeam(c.Request.Context(), req.TeamAlias)
	if err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user, "team": req.TeamAlias})
}

// handleListChannels returns the team's channels plus selection state
func (s *Server) handleListChannels(c *gin.Context) {
	channels, err := s.client.ListChannels(c.Request.Context())
	if err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	selected, _ := s.store.Settings().Get(store.SettingSelectedChannel)
	installed, _ := s.store.Settings().Get(store.SettingInstalledChannel)
	respondSuccess(c, http.StatusOK, gin.H{
		"channels":  channels,
		"selected":  selected,
		"installed": installed,
	})
}

// handleSelectChannel saves the channel selection. Selecting never installs:
// the widget only goes live through an explicit install.
func (s *Server) handleSelectChannel(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Settings().Set(store.SettingSelectedChannel, req.Alias); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"selected": req.Alias})
}

// WidgetInstallRequest carries the channel to embed
type WidgetInstallRequest struct {
	ChannelAlias string `json:"channel_alias" binding:"required"`
}

// handleWidgetInstall installs the widget for a channel
func (s *Server) handleWidgetInstall(c *gin.Context) {
	var req WidgetInstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.injector.Install(req.ChannelAlias); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.InfoWithContext(c.Request.Context(), "widget installed", "channel", req.ChannelAlias)
	respondSuccess(c, http.StatusOK, gin.H{"installed": req.ChannelAlias})
}

// handleWidgetUninstall removes the installed widget
func (s *Server) handleWidgetUninstall(c *gin.Context) {
	if err := s.injector.Uninstall(); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.InfoWithContext(c.Request.Context(), "widget uninstalled")
	respondSuccess(c, http.StatusOK, gin.H{"installed": ""})
}

// IngestContentRequest represents a content item pushed in by the site
type IngestContentRequest struct {
	ID        int64  `json:"id"`
	Type      string `json:"type" binding:"required"`
	Title     string `json:"title"`
	URL       string `json:"url" binding:"required"`
	Published bool   `json:"published"`
}

// handleIngestContent upserts a content item and triggers auto-sync for
// fresh publishes
func (s *Server) handleIngestContent(c *gin.Context) {
	var req IngestContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	item := &models.ContentItem{
		ID:        req.ID,
		Type:      req.Type,
		Title:     req.Title,
		URL:       req.URL,
		Published: req.Published,
	}
	if existing, ok := s.store.GetContent(req.ID); ok {
		item.Excluded = existing.Excluded
		item.SyncStatus = existing.SyncStatus
		item.SyncedAt = existing.SyncedAt
	}

	if err := s.store.SetContent(item); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.orchestrator.OnContentPublished(c.Request.Context(), item)

	respondSuccess(c, http.StatusOK, gin.H{"id": item.ID})
}

// handleListContent returns all tracked content with sync state
func (s *Server) handleListContent(c *gin.Context) {
	items := s.store.ListContent()
	stats := s.store.Stats()
	respondSuccess(c, http.StatusOK, gin.H{"items": items, "stats": stats})
}

// ExcludeRequest carries the exclusion flag
type ExcludeRequest struct {
	Excluded bool `json:"excluded"`
}

// handleExcludeContent flips the per-item exclusion flag
func (s *Server) handleExcludeContent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid content id")
		return
	}

	var req ExcludeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := s.store.GetContent(id); !ok {
		respondError(c, http.StatusNotFound, "content not found")
		return
	}
	if err := s.store.SetContentExcluded(id, req.Excluded); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "excluded": req.Excluded})
}

// handleSyncItem pushes a single content item to the knowledge source
func (s *Server) handleSyncItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid content id")
		return
	}

	if err := s.orchestrator.SyncItem(c.Request.Context(), id); err != nil {
		respondError(c, statusForError(err), err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "synced": true})
}

// SyncStepRequest drives one page of the content sync
type SyncStepRequest struct {
	Offset   int `json:"offset"`
	PageSize int `json:"page_size"`
}

// handleSyncStep syncs one page; the admin UI calls this repeatedly with
// next_offset until complete
func (s *Server) handleSyncStep(c *gin.Context) {
	var req SyncStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.PageSize <= 0 {
		req.PageSize = s.syncConfig.PageSize
	}

	result, err := s.orchestrator.Step(c.Request.Context(), req.Offset, req.PageSize, s.syncConfig.ContentTypes)
	if err != nil {
		s.metrics.RecordError("sync_error", "/admin/sync/step", "POST")
		respondError(c, statusForError(err), err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// handleListSyncEvents returns the recent sync log
func (s *Server) handleListSyncEvents(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	events := s.store.ListSyncEvents(limit)
	respondSuccess(c, http.StatusOK, gin.H{"events": events})
}

// SettingsResponse is the editable settings surface
type SettingsResponse struct {
	AutoSync    bool     `json:"auto_sync"`
	ThemeColor  string   `json:"theme_color"`
	SocialMedia []string `json:"social_media"`
}

// handleGetSettings returns the editable settings
func (s *Server) handleGetSettings(c *gin.Context) {
	settings := s.store.Settings()
	resp := SettingsResponse{
		AutoSync: settings.GetBool(store.SettingAutoSync, false),
	}
	resp.ThemeColor, _ = settings.Get(store.SettingThemeColor)
	_ = settings.GetJSON(store.SettingSocialMedia, &resp.SocialMedia)
	respondSuccess(c, http.StatusOK, resp)
}

// SaveSettingsRequest carries settings updates; nil fields are untouched
type SaveSettingsRequest struct {
	AutoSync    *bool     `json:"auto_sync"`
	ThemeColor  *string   `json:"theme_color"`
	SocialMedia *[]string `json:"social_media"`
}

// handleSaveSettings updates the editable settings
func (s *Server) handleSaveSettings(c *gin.Context) {
	var req SaveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	settings := s.store.Settings()
	if req.AutoSync != nil {
		if err := settings.SetBool(store.SettingAutoSync, *req.AutoSync); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.ThemeColor != nil {
		if err := settings.Set(store.SettingThemeColor, *req.ThemeColor); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.SocialMedia != nil {
		if err := settings.SetJSON(store.SettingSocialMedia, *req.SocialMedia); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondSuccess(c, http.StatusOK, gin.H{"saved": true})
}
