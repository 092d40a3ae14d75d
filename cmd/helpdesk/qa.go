package main

import (
	"fmt"

	"helpdesk-rag/internal/indexer"
	"helpdesk-rag/internal/ingest"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var flagQAWorkers int

var importQACmd = &cobra.Command{
	Use:   "import-qa <file.xlsx>",
	Short: "Bulk-import question/answer pairs from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pairs, err := ingest.ReadQAPairs(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if len(pairs) == 0 {
			log.Warn().Msg("no importable rows found")
			return nil
		}

		queue := indexer.NewQueue(a.newIndexer(), flagQAWorkers, len(pairs))
		accepted := 0
		for _, pair := range pairs {
			if queue.Enqueue(pair) {
				accepted++
			}
		}
		queue.Close()

		log.Info().Int("rows", len(pairs)).Int("accepted", accepted).Msg("QA import finished")
		return nil
	},
}

func init() {
	importQACmd.Flags().IntVar(&flagQAWorkers, "workers", 2, "indexing workers")
	rootCmd.AddCommand(importQACmd)
}
