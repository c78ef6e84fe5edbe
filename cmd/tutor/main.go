// Command tutor answers curriculum questions from the terminal, using the
// index built by the ingest command.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mathai-labs/tutor-core/internal/config"
	"github.com/mathai-labs/tutor-core/internal/embedding"
	"github.com/mathai-labs/tutor-core/internal/ocr"
	"github.com/mathai-labs/tutor-core/internal/prompt"
	"github.com/mathai-labs/tutor-core/internal/retriever"
	"github.com/mathai-labs/tutor-core/internal/storage"
	"github.com/mathai-labs/tutor-core/internal/tutor"
)

var (
	configPath string
	imagePath  string
	docPath    string
	stream     bool
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Curriculum-bound math tutor",
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed curriculum",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to config file")
	askCmd.Flags().StringVar(&imagePath, "image", "", "attach an exercise image (jpeg/png)")
	askCmd.Flags().StringVar(&docPath, "doc", "", "attach an extracted document text file")
	askCmd.Flags().BoolVar(&stream, "stream", false, "stream the answer token by token")
	rootCmd.AddCommand(askCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewPersistent(cfg.Index.Path, cfg.Index.Collection)
	if err != nil {
		return err
	}
	embedder := embedding.NewClient(
		cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
	)
	search := retriever.New(embedder, store, cfg.Retrieval.TopK, cfg.Retrieval.MaxDistance, log)
	assembler := prompt.New(prompt.NewScope(cfg.Scope.Topics), cfg.Scope.Refusal, cfg.Prompt.Concise)

	var chat tutor.ChatClient
	if cfg.Chat.APIKey != "" {
		chat = tutor.NewOpenAIChat(
			cfg.Chat.BaseURL, cfg.Chat.APIKey, cfg.Chat.Model,
			time.Duration(cfg.Chat.TimeoutSeconds)*time.Second,
		)
	}
	var vision ocr.VisionClient
	if cfg.Vision.APIKey != "" {
		vision = ocr.NewOpenAIVision(
			cfg.Vision.BaseURL, cfg.Vision.APIKey, cfg.Vision.Model,
			time.Duration(cfg.Vision.TimeoutSeconds)*time.Second,
		)
	}

	engine := tutor.NewEngine(search, assembler, chat, vision, log)

	question := tutor.Question{Text: args[0]}
	if question.Attachments, err = loadAttachments(); err != nil {
		return err
	}

	var answer tutor.Answer
	if stream {
		answer, err = engine.AskStream(ctx, question, func(token string) error {
			fmt.Print(token)
			return nil
		})
		fmt.Println()
		if err != nil {
			return err
		}
	} else {
		answer = engine.Ask(ctx, question)
		fmt.Println(answer.Content)
	}

	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s (Page %d)\n", src.Source, src.Page)
		}
	}
	return nil
}

func loadAttachments() ([]prompt.Attachment, error) {
	var attachments []prompt.Attachment
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("read image attachment: %w", err)
		}
		mime := "image/jpeg"
		if strings.EqualFold(filepath.Ext(imagePath), ".png") {
			mime = "image/png"
		}
		attachments = append(attachments, prompt.Image{MIME: mime, Data: data})
	}
	if docPath != "" {
		data, err := os.ReadFile(docPath)
		if err != nil {
			return nil, fmt.Errorf("read document attachment: %w", err)
		}
		attachments = append(attachments, prompt.Document{Text: string(data)})
	}
	return attachments, nil
}
