package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/chatlink/chatlink/internal/store"
)

// settingsCmd groups the settings subcommands
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and edit stored settings",
	Long: `Inspect and edit stored settings.

Settings live in the local database; the daemon picks changes up on
its next read. Keys holding credentials are masked in output.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsDelete,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known settings and their values",
	RunE:  runSettingsList,
}

// knownSettingKeys maps user-facing keys to their storage keys. Token
// material is deliberately absent; it is managed via login/logout.
var knownSettingKeys = map[string]string{
	"team":             store.SettingSelectedTeam,
	"knowledge-source": store.SettingKnowledgeSource,
	"channel":          store.SettingSelectedChannel,
	"auto-sync":        store.SettingAutoSync,
	"content-types":    store.SettingSyncContentTypes,
	"theme-color":      store.SettingThemeColor,
	"social-media":     store.SettingSocialMedia,
	"widget-token":     store.SettingWidgetTokenID,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsDeleteCmd)
	settingsCmd.AddCommand(settingsListCmd)

	RootCmd.AddCommand(settingsCmd)
}

func resolveSettingKey(name string) (string, error) {
	key, ok := knownSettingKeys[name]
	if !ok {
		names := make([]string, 0, len(knownSettingKeys))
		for n := range knownSettingKeys {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown setting %q, valid keys: %v", name, names)
	}
	return key, nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	key, err := resolveSettingKey(args[0])
	if err != nil {
		return err
	}

	_, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	value, ok := st.Settings().Get(key)
	if !ok {
		return fmt.Errorf("setting %q is not set", args[0])
	}
	fmt.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, err := resolveSettingKey(args[0])
	if err != nil {
		return err
	}

	_, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Settings().Set(key, args[1]); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runSettingsDelete(cmd *cobra.Command, args []string) error {
	key, err := resolveSettingKey(args[0])
	if err != nil {
		return err
	}

	_, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Settings().Delete(key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	fmt.Printf("%s deleted\n", args[0])
	return nil
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	_, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	names := make([]string, 0, len(knownSettingKeys))
	for n := range knownSettingKeys {
		names = append(names, n)
	}
	sort.Strings(names)

	settings := st.Settings()
	for _, n := range names {
		value, ok := settings.Get(knownSettingKeys[n])
		if !ok {
			value = "(unset)"
		}
		fmt.Printf("%-18s %s\n", n, value)
	}
	return nil
}
