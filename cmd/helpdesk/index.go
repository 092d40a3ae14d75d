package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"helpdesk-rag/internal/ingest"
	"helpdesk-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagContentID string
	flagTitle     string
	flagImages    []string
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Parse a document and index it into the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		filePath := args[0]
		text, err := ingest.ParseFile(filePath)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", filePath, err)
		}

		title := flagTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
		}
		contentID := flagContentID
		if contentID == "" {
			contentID = "file:" + filepath.Base(filePath)
		}

		n, err := a.newIndexer().IndexContent(ctx, models.Content{
			ID:        contentID,
			Title:     title,
			Body:      text,
			ImageURLs: flagImages,
		})
		if err != nil {
			return err
		}
		log.Info().Str("content_id", contentID).Int("chunks", n).Msg("content indexed")
		return nil
	},
}

var indexImageCmd = &cobra.Command{
	Use:   "index-image <content-id> <title> <image-url>",
	Short: "Caption an image and store it as a standalone searchable chunk",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.captioner == nil {
			return fmt.Errorf("no vision model configured")
		}
		if err := a.newIndexer().IndexImage(ctx, args[0], args[1], args[2]); err != nil {
			return err
		}
		log.Info().Str("content_id", args[0]).Msg("image indexed")
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&flagContentID, "id", "", "content id (defaults to the file name)")
	indexCmd.Flags().StringVar(&flagTitle, "title", "", "source label (defaults to the file name)")
	indexCmd.Flags().StringSliceVar(&flagImages, "image", nil, "image URL to caption inline (repeatable)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(indexImageCmd)
}
