package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevermore/portage/internal/target"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair derived columns in the target database",
}

var repairPostNumbersCmd = &cobra.Command{
	Use:   "post-numbers",
	Short: "Recompute highest_post_number for every topic",
	Long: `Recompute topics.highest_post_number from the posts actually present.

Topics are bulk-loaded before their posts, so a run that stops partway
through the posts step leaves the counter behind the real post count. A
completed run fixes it automatically; use this after an aborted one.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cfg := loadConfig()

		ctx, cancel := signalContext()
		defer cancel()

		tgt, err := target.Open(ctx, cfg.TargetDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connect target: %v\n", err)
			os.Exit(1)
		}
		defer tgt.Close()

		updated, err := tgt.RepairPostNumbers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %d topics\n", updated)
	},
}

func init() {
	repairCmd.AddCommand(repairPostNumbersCmd)
	rootCmd.AddCommand(repairCmd)
}
