package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/scriptorium/core/session"
)

var (
	searchCategory  string
	searchAgentType string
	searchRelevance bool
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search past conversations",
	Args:  cobra.MaximumNArgs(1),
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

		query := session.SearchQuery{
			Category:  searchCategory,
			AgentType: searchAgentType,
			Limit:     searchLimit,
		}
		if len(args) > 0 {
			query.Text = args[0]
		}
		if searchRelevance {
			query.Order = session.OrderRelevance
		}

		results, err := rt.coordinator.SearchHistory(cmd.Context(), query)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("no matching sessions")
			return nil
		}

		for _, summary := range results {
			line := fmt.Sprintf("%s  [%s]", summary.ID, summary.AgentType)
			if summary.Category != "" {
				line += "  (" + summary.Category + ")"
			}
			fmt.Println(line)
			if summary.Preview != "" {
				fmt.Printf("  %s\n", strings.ReplaceAll(summary.Preview, "\n", " "))
			}
			fmt.Printf("  %d messages, last active %s\n",
				summary.MessageCount,
				summary.LastActivityAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "filter by category")
	searchCmd.Flags().StringVar(&searchAgentType, "agent", "", "filter by agent type")
	searchCmd.Flags().BoolVar(&searchRelevance, "relevance", false, "order by relevance instead of recency")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
