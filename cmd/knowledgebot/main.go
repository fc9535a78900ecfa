package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/furkankasim16/knowledge-bot/internal/generate"
	"github.com/furkankasim16/knowledge-bot/internal/handler"
	"github.com/furkankasim16/knowledge-bot/internal/llm"
	"github.com/furkankasim16/knowledge-bot/internal/rag"
	"github.com/furkankasim16/knowledge-bot/internal/store"
	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "knowledgebot",
		Short: "Quiz question generator backed by a document knowledge base",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `knowledgebot --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "knowledgebot.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the LLM backend")
	f.String("llm-model", "mistral", "Primary LLM model name")
	f.String("llm-model-alt", "", "Alternate LLM model name (empty disables the split)")
	f.Float64("model-ratio", generate.DefaultModelRatio, "Probability of picking the primary model")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for a single generation call")
	f.Bool("stream", false, "Use streaming completions")
	f.String("embed-model", "nomic-embed-text", "Embedding model name")
	f.String("qdrant-url", "http://localhost:6333", "Qdrant base URL")
	f.String("qdrant-collection", "kb", "Qdrant collection name")
	f.Int("qdrant-dim", 768, "Embedding vector dimension")
	f.Int("context-chunks", generate.DefaultContextChunks, "Passages retrieved per question")
	f.Int("max-context-chars", generate.DefaultMaxContextChars, "Character budget for retrieved context")
	f.String("language", llm.DefaultLanguage, "Output language for generated questions")
	f.StringSlice("topics", nil, "Topics for random draws (default built-in list)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.Int("chunk-size", rag.DefaultChunkSize, "Document chunk size in characters")
	f.Int("chunk-overlap", rag.DefaultChunkOverlap, "Overlap between consecutive chunks")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of questions and exit",
		RunE:  runGenerate,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.IntP("count", "n", 10, "Number of questions to generate")
	f.Duration("retry-delay", generate.DefaultRetryDelay, "Pause after a failed attempt")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("KBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("knowledgebot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/knowledgebot")
	v.AddConfigPath("/etc/knowledgebot")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// backend bundles the components both commands need.
type backend struct {
	store    *store.Store
	index    *vector.Qdrant
	pipeline *generate.Pipeline
	chat     *generate.Chat
}

func buildBackend(ctx context.Context, v *viper.Viper) (*backend, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetDuration("llm-timeout"))
	if err := llmClient.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	embedder := vector.NewOpenAIEmbedder(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("embed-model"))
	index, err := vector.NewQdrant(ctx, vector.Config{
		URL:        v.GetString("qdrant-url"),
		Collection: v.GetString("qdrant-collection"),
		VectorDim:  v.GetInt("qdrant-dim"),
	}, embedder)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	pipeline := generate.NewPipeline(rag.NewRetriever(index), llmClient, db, generate.Config{
		Model:           v.GetString("llm-model"),
		AltModel:        v.GetString("llm-model-alt"),
		ModelRatio:      v.GetFloat64("model-ratio"),
		ContextChunks:   v.GetInt("context-chunks"),
		MaxContextChars: v.GetInt("max-context-chars"),
		Language:        v.GetString("language"),
		Stream:          v.GetBool("stream"),
	})

	chat := generate.NewChat(index, llmClient, v.GetString("llm-model"), v.GetString("language"))

	return &backend{store: db, index: index, pipeline: pipeline, chat: chat}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := buildBackend(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer b.store.Close()

	indexer := rag.NewIndexer(b.index, rag.PlainText{}, v.GetInt("chunk-size"), v.GetInt("chunk-overlap"))
	h := handler.New(indexer, b.index, b.pipeline, b.chat, b.store, v.GetStringSlice("topics"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"qdrant_url", v.GetString("qdrant-url"),
		"collection", v.GetString("qdrant-collection"),
		"stream", v.GetBool("stream"),
	)
	return http.ListenAndServe(addr, r)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := buildBackend(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer b.store.Close()

	count := v.GetInt("count")
	start := time.Now()
	report, err := b.pipeline.Batch(cmd.Context(), count, v.GetStringSlice("topics"), v.GetDuration("retry-delay"))
	if err != nil {
		return fmt.Errorf("batch stopped after %d of %d: %w", report.Generated, count, err)
	}

	fmt.Printf("Generated %d questions (%d duplicates skipped, %d failed attempts) in %s\n",
		report.Generated, report.Duplicates, report.Failures, time.Since(start).Round(time.Second))
	return nil
}
