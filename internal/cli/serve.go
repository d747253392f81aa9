package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatlink/chatlink/internal/api"
	"github.com/chatlink/chatlink/internal/config"
	"github.com/chatlink/chatlink/internal/notify"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
	syncer "github.com/chatlink/chatlink/internal/sync"
	"github.com/chatlink/chatlink/internal/widget"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the ChatLink daemon",
	Long: `Start the ChatLink daemon.

This command starts the HTTP server that exposes the admin API, the
widget embed endpoint, and drives content sync against the chatbot
platform.

Example:
  chatlink serve --config config.yaml --db ./data/chatlink.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("CHATLINK_SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "1.3", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting ChatLink daemon...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}

	if cfg.Server.TLS.Enabled {
		if err := validateTLSConfig(cfg.Server.TLS); err != nil {
			return fmt.Errorf("TLS validation failed: %w", err)
		}
	}

	sqliteStore, err := store.NewSQLiteStoreWithRetention(globalFlags.DBPath, cfg.Retention.Days)
	if err != nil {
		return fmt.Errorf("failed to create SQLite store: %w", err)
	}

	if err := ensureSettingsDefaults(sqliteStore.Settings(), cfg); err != nil {
		return fmt.Errorf("failed to seed settings defaults: %w", err)
	}

	client := newPlatformClient(cfg, sqliteStore.Settings())

	var orchOpts []syncer.Option
	if cfg.Telegram.Enabled {
		orchOpts = append(orchOpts, syncer.WithNotifier(notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)))
	}
	orchestrator := syncer.NewOrchestrator(sqliteStore, client, orchOpts...)

	injector := widget.NewInjector(sqliteStore.Settings(), cfg.Widget.ScriptURL)

	server := api.NewServer(*cfg, sqliteStore, client, orchestrator, injector)

	// Watch the config file so log level and sync tuning pick up edits
	// without a restart
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	loader.SetOnChange(func(updated *config.Config) {
		log.Printf("Configuration reloaded from %s", globalFlags.Config)
	})
	if watcher, err := config.NewWatcher(loader, func(err error) {
		log.Printf("Config reload warning: %v", err)
	}); err != nil {
		log.Printf("Config watcher disabled: %v", err)
	} else {
		watcher.Start(watchCtx)
	}

	setupGracefulShutdown(server, watchCancel, serveFlags.Timeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting ChatLink HTTPS server on %s", addr)
	} else {
		log.Printf("Starting ChatLink HTTP server on %s", addr)
	}
	log.Printf("Database: %s (WAL mode enabled)", globalFlags.DBPath)

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// newPlatformClient builds the platform API client from config
func newPlatformClient(cfg *config.Config, settings store.SettingsStore) *platform.Client {
	opts := []platform.ClientOption{
		platform.WithHTTPClient(&http.Client{Timeout: cfg.Platform.Timeout}),
		platform.WithRefreshTimeout(cfg.Platform.RefreshTimeout),
	}
	if cfg.Platform.UTLS {
		opts = append(opts, platform.WithUTLS())
	}
	return platform.NewClient(cfg.Platform.BaseURL, settings, opts...)
}

// ensureSettingsDefaults seeds editable settings from config on first run
func ensureSettingsDefaults(settings store.SettingsStore, cfg *config.Config) error {
	if _, ok := settings.Get(store.SettingAutoSync); !ok {
		if err := settings.SetBool(store.SettingAutoSync, cfg.Sync.AutoSync); err != nil {
			return err
		}
	}
	if _, ok := settings.Get(store.SettingSyncContentTypes); !ok {
		if err := settings.SetJSON(store.SettingSyncContentTypes, cfg.Sync.ContentTypes); err != nil {
			return err
		}
	}
	return nil
}

// validateTLSConfig validates TLS configuration
func validateTLSConfig(tls config.TLSConfig) error {
	if tls.CertFile == "" {
		return fmt.Errorf("TLS certificate file is required when TLS is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS key file is required when TLS is enabled")
	}

	if _, err := os.Stat(tls.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file does not exist: %s", tls.CertFile)
	}
	if _, err := os.Stat(tls.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file does not exist: %s", tls.KeyFile)
	}

	if tls.MinVersion != "" && tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
		return fmt.Errorf("TLS min_version must be either \"1.2\" or \"1.3\", got: %s", tls.MinVersion)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown of all components
func setupGracefulShutdown(server *api.Server, cancelWatch context.CancelFunc, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if cancelWatch != nil {
			cancelWatch()
		}

		log.Println("Shutting down API server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
