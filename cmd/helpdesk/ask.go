package main

import (
	"fmt"

	"helpdesk-rag/internal/helper"
	"helpdesk-rag/internal/rag"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Retrieve supporting passages and generate an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pipeline := rag.NewRAG(a.newRetriever(), a.newLimiter(), a.cfg)
		answer, err := pipeline.Query(ctx, "cli", args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", answer.Content)
		if len(answer.Sources) > 0 {
			if flagVerbose {
				helper.PrettyPrint(answer.Sources)
				return nil
			}
			fmt.Println("\nSources:")
			for _, src := range answer.Sources {
				fmt.Printf("  - %s (%s, similarity %.2f)\n", src.SourceLabel, src.SourceCategory, src.Similarity)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
