package commands

import (
	"fmt"
	"net/url"

	"github.com/marmos91/anpbroker/cmd/anpctl/cmdutil"
	"github.com/marmos91/anpbroker/internal/cli/credentials"
	"github.com/marmos91/anpbroker/internal/cli/prompt"
	"github.com/marmos91/anpbroker/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	loginServer string
	loginToken  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register a running anpd's admin API and operator token",
	Long: `Register the admin API of a running anpd and store its operator token.

anpd mints a single operator token at startup and prints it to stdout - there
is no username/password or per-user account. Paste that token here to create
(or update) a context.

Examples:
  # First login to a server
  anpctl login --server http://localhost:8088 --token <printed-token>

  # Re-login to the server of the current context, updating its token
  anpctl login --token <new-token>`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "Admin API URL (required on first login)")
	loginCmd.Flags().StringVarP(&loginToken, "token", "t", "", "Operator token printed by 'anpd start'")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	serverURLStr := loginServer
	if serverURLStr == "" {
		ctx, err := store.GetCurrentContext()
		if err != nil || ctx == nil || ctx.ServerURL == "" {
			return fmt.Errorf("no server URL specified and no saved context found\n\n" +
				"Specify the admin API URL:\n" +
				"  anpctl login --server http://localhost:8088 --token <token>")
		}
		serverURLStr = ctx.ServerURL
	}

	parsedURL, err := url.Parse(serverURLStr)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "http"
		serverURLStr = parsedURL.String()
	}

	token := loginToken
	if token == "" {
		token, err = prompt.Password("Operator token")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client := apiclient.New(serverURLStr).WithToken(token)
	if !client.Healthy() {
		return fmt.Errorf("could not reach %s - check the server URL and that anpd is running", serverURLStr)
	}

	contextName := store.GetCurrentContextName()
	if contextName == "" {
		contextName = credentials.GenerateContextName(serverURLStr)
	}

	ctx := &credentials.Context{
		ServerURL:   serverURLStr,
		AccessToken: token,
	}

	if err := store.SetContext(contextName, ctx); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	if err := store.UseContext(contextName); err != nil {
		return fmt.Errorf("failed to set current context: %w", err)
	}

	fmt.Printf("Logged in to %s\n", serverURLStr)
	fmt.Printf("Context: %s\n", contextName)
	fmt.Printf("Credentials saved to: %s\n", store.ConfigPath())

	return nil
}
