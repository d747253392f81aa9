package cli

import (
	"fmt"

	"github.com/chatlink/chatlink/internal/config"
	"github.com/chatlink/chatlink/internal/store"
)

// openEnvironment loads the configuration and opens the local database
// for commands that run outside the daemon. The caller must Close the
// returned store.
func openEnvironment() (*config.Config, *store.SQLiteStore, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.NewSQLiteStoreWithRetention(globalFlags.DBPath, cfg.Retention.Days)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ensureSettingsDefaults(st.Settings(), cfg); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to seed settings defaults: %w", err)
	}

	return cfg, st, nil
}
