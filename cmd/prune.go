package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions idle past a cutoff",
	Long: `Prune permanently deletes sessions whose last activity is older than
the cutoff. Nothing prunes automatically; this is the only path that
removes sessions by age.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		rt, err := buildRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		count, err := rt.coordinator.PruneIdle(cmd.Context(), pruneOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d sessions idle longer than %s\n", count, pruneOlderThan)
		return nil
	},
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 720*time.Hour,
		"delete sessions idle longer than this")
	rootCmd.AddCommand(pruneCmd)
}
