package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/anpbroker/cmd/anpctl/cmdutil"
	"github.com/marmos91/anpbroker/internal/cli/output"
	"github.com/marmos91/anpbroker/pkg/apiclient"
	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect and ping broker channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open channels",
	RunE:  runChannelsList,
}

var channelsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsGet,
}

var channelsPingCmd = &cobra.Command{
	Use:   "ping <id>",
	Short: "Send a diagnostic ping across a channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsPing,
}

func init() {
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsGetCmd)
	channelsCmd.AddCommand(channelsPingCmd)
}

type channelTable struct {
	channels []apiclient.Channel
}

func (t channelTable) Headers() []string { return []string{"ID", "OPEN", "PENDING OUT", "PENDING IN"} }

func (t channelTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.channels))
	for _, c := range t.channels {
		rows = append(rows, []string{
			strconv.FormatUint(c.ID, 10),
			cmdutil.BoolToYesNo(c.Open),
			strconv.Itoa(c.PendingOutgoing),
			strconv.Itoa(c.PendingIncoming),
		})
	}
	return rows
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	channels, err := client.ListChannels()
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, channels, len(channels) == 0, "No open channels.", channelTable{channels: channels})
}

func runChannelsGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", args[0], err)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	channel, err := client.GetChannel(id)
	if err != nil {
		return fmt.Errorf("failed to get channel %d: %w", id, err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, channel)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, channel)
	default:
		fmt.Printf("Channel %d\n", channel.ID)
		fmt.Printf("  Open:             %s\n", cmdutil.BoolToYesNo(channel.Open))
		fmt.Printf("  Pending outgoing: %d\n", channel.PendingOutgoing)
		fmt.Printf("  Pending incoming: %d\n", channel.PendingIncoming)
		return nil
	}
}

func runChannelsPing(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", args[0], err)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	result, err := client.PingChannel(id)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, result)
	default:
		fmt.Printf("pong from channel %d (query %d) in %dms\n", result.ChannelID, result.QueryID, result.DurationMs)
		return nil
	}
}
