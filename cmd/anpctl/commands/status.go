package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/anpbroker/cmd/anpctl/cmdutil"
	"github.com/marmos91/anpbroker/internal/cli/credentials"
	"github.com/marmos91/anpbroker/internal/cli/output"
	"github.com/marmos91/anpbroker/internal/cli/timeutil"
	"github.com/marmos91/anpbroker/pkg/apiclient"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connected anpd's status",
	Long: `Display the status of the anpd the current context points at.

This command calls the admin API's health endpoint and displays status,
uptime, and service information.

Examples:
  # Check status of the current context's server
  anpctl status

  # Output as JSON
  anpctl status -o json`,
	RunE: runStatus,
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Server    string `json:"server" yaml:"server"`
	Status    string `json:"status" yaml:"status"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	ctx, err := store.GetCurrentContext()
	if err != nil {
		return fmt.Errorf("not logged in. Run 'anpctl login' first")
	}

	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		serverURL = ctx.ServerURL
	}
	if serverURL == "" {
		return fmt.Errorf("no server configured. Run 'anpctl login' first")
	}

	status := ServerStatus{
		Server:  serverURL,
		Status:  "unreachable",
		Healthy: false,
	}

	health, err := apiclient.New(serverURL).Health()
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
		status.Healthy = true
		status.Service = health.Service
		status.StartedAt = health.StartedAt
		status.Uptime = health.Uptime
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("anpd Status")
	fmt.Println("===========")
	fmt.Println()
	fmt.Printf("  Server:     %s\n", status.Server)

	if status.Healthy {
		fmt.Printf("  Status:     \033[32m● %s\033[0m\n", status.Status)
	} else {
		fmt.Printf("  Status:     \033[31m○ %s\033[0m\n", status.Status)
	}

	if status.Service != "" {
		fmt.Printf("  Service:    %s\n", status.Service)
	}
	if status.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
	}
	if status.Uptime != "" {
		fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
	}
	if status.Error != "" {
		fmt.Printf("  Error:      %s\n", status.Error)
	}
	fmt.Println()
}
