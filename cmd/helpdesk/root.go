package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/db"
	"helpdesk-rag/internal/embedding"
	"helpdesk-rag/internal/expander"
	"helpdesk-rag/internal/indexer"
	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/ratelimit"
	"helpdesk-rag/internal/reranker"
	"helpdesk-rag/internal/retriever"
	"helpdesk-rag/internal/store"
	"helpdesk-rag/internal/vision"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Knowledge retrieval pipeline for the help-desk platform",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "./configs/config.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// app wires the pipeline components for one command invocation.
type app struct {
	cfg       *config.Config
	store     store.ChunkStore
	embedder  *embedding.Client
	genClient *llmservice.Client
	captioner *vision.Captioner
	bunDB     *bun.DB
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg}

	switch cfg.Store.Backend {
	case "chromem":
		a.store, err = store.NewChromemStore(cfg.Store.Path, cfg.Store.Collection)
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
	default:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.bunDB = db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, a.bunDB); err != nil {
			return nil, fmt.Errorf("initializing database: %w", err)
		}
		a.store = store.NewPostgresStore(a.bunDB)
	}

	a.embedder, err = embedding.NewClient(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}
	a.genClient, err = llmservice.NewClient(&cfg.GenLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing generation client: %w", err)
	}

	if cfg.VisionLLM.Model != "" {
		visionClient, err := llmservice.NewClient(&cfg.VisionLLM)
		if err != nil {
			return nil, fmt.Errorf("initializing vision client: %w", err)
		}
		a.captioner = vision.NewCaptioner(visionClient)
	}

	return a, nil
}

func (a *app) Close() {
	if a.bunDB != nil {
		if err := a.bunDB.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}

func (a *app) newIndexer() *indexer.Indexer {
	var capt indexer.Captioner
	if a.captioner != nil {
		capt = a.captioner
	}
	return indexer.New(a.store, a.embedder, capt, &a.cfg.RAG)
}

func (a *app) newRetriever() *retriever.Retriever {
	exp := expander.New(a.genClient, a.embedder)
	rr := reranker.New(a.genClient, time.Duration(a.cfg.RAG.RerankTimeoutMs)*time.Millisecond)
	return retriever.New(a.store, a.embedder, exp, rr, &a.cfg.RAG)
}

func (a *app) newLimiter() *ratelimit.Limiter {
	if !a.cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.NewLimiter(a.cfg.RateLimit.PerMinute, time.Minute)
}
