package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chatlink/chatlink/internal/config"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the chatbot platform",
	Long: `Authenticate against the chatbot platform.

Obtains an access/refresh token pair and stores it in the local
database so the daemon and other commands can use it.

Example:
  chatlink login --email you@example.com

If --password is omitted the command prompts for it without echo.`,
	RunE: runLogin,
}

var loginFlags struct {
	Email    string
	Password string
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard stored platform credentials",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginFlags.Email, "email", "", "Platform account email")
	loginCmd.Flags().StringVar(&loginFlags.Password, "password", "", "Platform account password (prompted if omitted)")

	RootCmd.AddCommand(loginCmd)
	RootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	email := strings.TrimSpace(loginFlags.Email)
	if email == "" {
		fmt.Print("Email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := loginFlags.Password
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	client := newPlatformClient(cfg, st.Settings())
	user, err := client.Login(context.Background(), email, password, true)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
	if user.TeamName != "" {
		fmt.Printf("Active team: %s (%s)\n", user.TeamName, user.TeamAlias)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	client := newPlatformClient(cfg, st.Settings())
	if err := client.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	fmt.Println("Credentials cleared")
	return nil
}

// ensureAuthenticated builds a client and fails fast when the stored
// tokens are missing or no longer refreshable.
func ensureAuthenticated(cfg *config.Config, settings store.SettingsStore) (*platform.Client, error) {
	client := newPlatformClient(cfg, settings)
	if !client.IsAuthenticated(context.Background()) {
		return nil, fmt.Errorf("not authenticated, run 'chatlink login' first")
	}
	return client, nil
}
