package context

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/anpbroker/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}

		names := store.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured. Run 'anpctl login' to create one.")
			return nil
		}

		current := store.GetCurrentContextName()
		for _, name := range names {
			ctx, err := store.GetContext(name)
			if err != nil {
				continue
			}
			marker := "  "
			if name == current {
				marker = "* "
			}
			fmt.Printf("%s%-20s %s\n", marker, name, ctx.ServerURL)
		}
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		if err := store.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Switched to context %q\n", args[0])
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		ctx, err := store.GetCurrentContext()
		if err != nil {
			fmt.Fprintln(os.Stderr, "No current context set.")
			return err
		}
		fmt.Printf("%s (%s)\n", store.GetCurrentContextName(), ctx.ServerURL)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a context",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		if err := store.RenameContext(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed context %q to %q\n", args[0], args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		if err := store.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted context %q\n", args[0])
		return nil
	},
}
