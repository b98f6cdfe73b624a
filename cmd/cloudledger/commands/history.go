package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <type> <resource-id>",
	Short: "Show the change ledger for one resource",
	Long: `Print the recorded changes for a resource, newest first.

Example:
  cloudledger history ec2_instance i-0abc123def456`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok := resource.ParseType(args[0])
		if !ok {
			return fmt.Errorf("unknown resource type %q", args[0])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.History(ctx, t, args[1], historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No recorded changes.")
			return nil
		}

		headStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99"))
		fmt.Println(headStyle.Render(fmt.Sprintf("%s %s", args[0], args[1])))
		for _, e := range entries {
			fmt.Printf("%s  %-20s %q -> %q  by %s\n",
				e.ChangedAt.UTC().Format(time.RFC3339), e.Field, e.OldValue, e.NewValue, e.ChangedBy)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Max entries to show")
}
