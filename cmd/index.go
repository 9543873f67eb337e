package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/scriptorium/core/retrieval"
)

// knowledgeFile is the on-disk format accepted by `scriptorium index`.
type knowledgeFile struct {
	Items []retrieval.Item `yaml:"items"`
}

var indexCmd = &cobra.Command{
	Use:   "index <items.yaml>",
	Short: "Embed and index knowledge base items",
	Long: `Index reads a YAML file of scripts (id, title, description, category)
and upserts them into the knowledge base. Existing ids are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		if !cfg.Retrieval.Enabled {
			return fmt.Errorf("retrieval is disabled in config")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read items file: %w", err)
		}
		var file knowledgeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse items file: %w", err)
		}
		if len(file.Items) == 0 {
			return fmt.Errorf("no items in %s", args[0])
		}
		for i, item := range file.Items {
			if item.ID == "" || item.Title == "" {
				return fmt.Errorf("item %d is missing id or title", i)
			}
		}

		rt, err := buildRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.index.Upsert(cmd.Context(), file.Items...); err != nil {
			return err
		}

		status := rt.index.Status()
		fmt.Printf("indexed %d items (%d total, %d embedded)\n",
			len(file.Items), status.TotalItems, status.EmbeddedItems)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
