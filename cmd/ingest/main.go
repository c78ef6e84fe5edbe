// Command ingest builds and inspects the curriculum vector index.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mathai-labs/tutor-core/internal/chunker"
	"github.com/mathai-labs/tutor-core/internal/config"
	"github.com/mathai-labs/tutor-core/internal/embedding"
	"github.com/mathai-labs/tutor-core/internal/indexer"
	"github.com/mathai-labs/tutor-core/internal/ocr"
	"github.com/mathai-labs/tutor-core/internal/storage"
)

var (
	configPath string
	sourceDir  string
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Curriculum index management",
	Long:  "Builds the persistent vector index from curriculum PDFs and verifies search quality against it.",
}

var ingestCmd = &cobra.Command{
	Use:   "run",
	Short: "Wipe and rebuild the index from a PDF directory",
	Long: `Wipes the target collection and re-ingests every PDF under --source.

Scanned documents (no text layer) are transcribed with the configured vision
model, page group by page group, with progress checkpointed so an interrupted
run can resume without repeating model calls.

Environment variables:
  COHERE_API_KEY  embedding service key (required)
  VISION_API_KEY  vision model key (scanned documents only)
  CHROMA_PATH     overrides the index location`,
	RunE: runIngest,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [query]",
	Short: "Run a search query and print raw results with distances",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to config file")
	ingestCmd.Flags().StringVar(&sourceDir, "source", "./curriculum_data/raw", "directory of curriculum PDFs")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(verifyCmd)
}

func main() {
	// .env for local development, ignored when absent.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Embedding.APIKey == "" {
		return fmt.Errorf("COHERE_API_KEY is not set")
	}

	store, err := storage.NewPersistent(cfg.Index.Path, cfg.Index.Collection)
	if err != nil {
		return err
	}

	embedder := embedding.NewClient(
		cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
	)

	var scanned indexer.ScannedExtractor
	if cfg.Vision.APIKey != "" {
		vision := ocr.NewOpenAIVision(
			cfg.Vision.BaseURL, cfg.Vision.APIKey, cfg.Vision.Model,
			time.Duration(cfg.Vision.TimeoutSeconds)*time.Second,
		)
		scanned = ocr.NewExtractor(
			ocr.NewPopplerRasterizer(cfg.OCR.RenderDPI), vision,
			cfg.OCR.GroupSize, cfg.OCR.Workers, cfg.OCR.ProgressFile, log,
		)
	} else {
		log.Warn().Msg("no vision key configured, scanned documents will be skipped")
	}

	ch := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	pipeline := indexer.NewPipeline(indexer.FileCorpus{}, ch, embedder, store, scanned, cfg.Embedding.BatchSize, log)

	result, err := pipeline.IndexAll(ctx, sourceDir)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Ingestion complete")
	fmt.Printf("  Documents: %d/%d\n", result.IndexedDocs, result.TotalDocs)
	fmt.Printf("  Chunks:    %d/%d\n", result.IndexedChunks, result.TotalChunks)
	fmt.Printf("  Failed batches: %d\n", result.FailedBatches)
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Second))
	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Embedding.APIKey == "" {
		return fmt.Errorf("COHERE_API_KEY is not set")
	}

	store, err := storage.NewPersistent(cfg.Index.Path, cfg.Index.Collection)
	if err != nil {
		return err
	}
	embedder := embedding.NewClient(
		cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
	)

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return err
	}
	results, err := store.Query(ctx, vector, cfg.Retrieval.TopK)
	if err != nil {
		return err
	}

	fmt.Printf("Searching for: %q (%d records in index)\n\n", query, store.Count())
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, res := range results {
		snippet := res.Text
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		marker := ""
		if res.Distance > cfg.Retrieval.MaxDistance {
			marker = "  [below relevance threshold]"
		}
		fmt.Printf("Result %d (distance %.4f)%s\n", i+1, res.Distance, marker)
		fmt.Printf("Source: %s (Page %d)\n", res.Source, res.Page)
		fmt.Printf("%s\n\n", snippet)
	}
	return nil
}
