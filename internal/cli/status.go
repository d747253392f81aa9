package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatlink/chatlink/internal/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection, selection and sync state",
	Long: `Show connection, selection and sync state.

Reports whether stored credentials are still usable, the active team,
knowledge source and channel selections, content store statistics,
and the most recent sync events.`,
	RunE: runStatus,
}

var statusFlags struct {
	Events int
}

func init() {
	statusCmd.Flags().IntVar(&statusFlags.Events, "events", 5, "Number of recent sync events to show")

	RootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Authenticated   bool               `json:"authenticated"`
	User            string             `json:"user,omitempty"`
	Email           string             `json:"email,omitempty"`
	Team            string             `json:"team,omitempty"`
	KnowledgeSource string             `json:"knowledge_source,omitempty"`
	SelectedChannel string             `json:"selected_channel,omitempty"`
	WidgetInstalled bool               `json:"widget_installed"`
	Stats           store.StoreStats   `json:"stats"`
	RecentEvents    []statusEventEntry `json:"recent_events,omitempty"`
}

type statusEventEntry struct {
	ItemID  int64  `json:"item_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	At      string `json:"at"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	settings := st.Settings()
	client := newPlatformClient(cfg, settings)

	report := statusReport{
		Authenticated: client.IsAuthenticated(context.Background()),
		Stats:         st.Stats(),
	}
	if user, ok := client.Tokens().LoadUserInfo(); ok {
		report.User = user.Name
		report.Email = user.Email
	}
	if team, ok := settings.Get(store.SettingSelectedTeam); ok {
		report.Team = team
	}
	if ks, ok := settings.Get(store.SettingKnowledgeSource); ok {
		report.KnowledgeSource = ks
	}
	if ch, ok := settings.Get(store.SettingSelectedChannel); ok {
		report.SelectedChannel = ch
	}
	_, report.WidgetInstalled = settings.Get(store.SettingInstalledChannel)

	for _, ev := range st.ListSyncEvents(statusFlags.Events) {
		report.RecentEvents = append(report.RecentEvents, statusEventEntry{
			ItemID:  ev.ItemID,
			Status:  string(ev.Status),
			Message: ev.Message,
			At:      ev.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printStatusReport(report)
	return nil
}

func printStatusReport(r statusReport) {
	if r.Authenticated {
		fmt.Println("Platform: connected")
	} else {
		fmt.Println("Platform: not authenticated")
	}
	if r.User != "" {
		fmt.Printf("User: %s <%s>\n", r.User, r.Email)
	}
	if r.Team != "" {
		fmt.Printf("Team: %s\n", r.Team)
	}
	if r.KnowledgeSource != "" {
		fmt.Printf("Knowledge source: %s\n", r.KnowledgeSource)
	} else {
		fmt.Println("Knowledge source: none selected")
	}
	if r.SelectedChannel != "" {
		fmt.Printf("Channel: %s (widget installed: %t)\n", r.SelectedChannel, r.WidgetInstalled)
	}

	fmt.Printf("Content: %d total, %d synced, %d errors, %d excluded\n",
		r.Stats.ContentCount, r.Stats.SyncedCount, r.Stats.ErrorCount, r.Stats.ExcludedCount)

	if len(r.RecentEvents) > 0 {
		fmt.Println("Recent sync events:")
		for _, ev := range r.RecentEvents {
			if ev.Message != "" {
				fmt.Printf("  %s  item %d  %s: %s\n", ev.At, ev.ItemID, ev.Status, ev.Message)
			} else {
				fmt.Printf("  %s  item %d  %s\n", ev.At, ev.ItemID, ev.Status)
			}
		}
	}
}
