// Command lisarag is the command-line surface over the RAG core: migrate
// the schema, ingest documents, and ask questions against them.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lisa-ai/rag/config"
	"github.com/lisa-ai/rag/internal/chunker"
	"github.com/lisa-ai/rag/internal/db"
	"github.com/lisa-ai/rag/internal/embedding"
	"github.com/lisa-ai/rag/internal/filestore"
	"github.com/lisa-ai/rag/internal/ingest"
	"github.com/lisa-ai/rag/internal/logger"
	"github.com/lisa-ai/rag/internal/metrics"
	"github.com/lisa-ai/rag/internal/rag"
	"github.com/lisa-ai/rag/internal/service"
	"github.com/lisa-ai/rag/internal/vectorstore"
)

var (
	flagConfig       string
	flagUser         string
	flagConversation string
	flagTopK         int
)

func main() {
	root := &cobra.Command{
		Use:           "lisarag",
		Short:         "Document question answering over a pgvector store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVarP(&flagUser, "user", "u", "local", "user id owning the documents")
	root.PersistentFlags().StringVar(&flagConversation, "conversation", "", "conversation id (uuid)")

	askCmd := newAskCmd()
	askCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "number of chunks to retrieve (0 = configured default)")

	root.AddCommand(
		newMigrateCmd(),
		newIngestCmd(),
		askCmd,
		newDocumentsCmd(),
		newDeleteCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	db      *db.DB
	queue   *ingest.Queue
	service *service.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		var lines []string
		for _, e := range errs {
			lines = append(lines, e.Error())
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(lines, "\n  "))
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	m := metrics.New(prometheus.NewRegistry())

	database, err := db.New(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}
	embedder, err := embedding.NewClient(provider, embedding.Options{
		Dimensions:    cfg.Embedding.Dimensions,
		BatchSize:     cfg.Embedding.BatchSize,
		BatchInterval: cfg.Embedding.BatchInterval,
		BatchCounter:  m.EmbeddingBatches,
		Logger:        log,
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	splitter, err := chunker.New(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		database.Close()
		return nil, err
	}

	files, err := filestore.New(cfg.Paths.DataDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	store := vectorstore.New(database, cfg.Embedding.Dimensions, log)
	pipeline := ingest.NewPipeline(database, splitter, embedder, store, m, log)
	queue := ingest.NewQueue(pipeline, cfg.Processing.Workers, cfg.Processing.QueueSize, log)
	builder := rag.NewBuilder(embedder, store, m, log)
	svc := service.New(database, files, queue, builder, store, cfg.Processing.MaxFileSize, log)

	return &app{cfg: cfg, db: database, queue: queue, service: svc}, nil
}

// close drains the ingestion queue before releasing the pool so in-flight
// documents finish instead of being stranded in processing.
func (a *app) close() {
	a.queue.Close()
	a.db.Close()
}

func newProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return embedding.NewOllamaProvider(embedding.OllamaConfig{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	default:
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	}
}

func conversationID() (uuid.UUID, error) {
	if flagConversation == "" {
		return uuid.Nil, fmt.Errorf("--conversation is required")
	}
	id, err := uuid.Parse(flagConversation)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid conversation id %q: %w", flagConversation, err)
	}
	return id, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and vector indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.Migrate(cmd.Context(), a.cfg.Embedding.Dimensions); err != nil {
				return err
			}
			fmt.Printf("schema ready (vector dimension %d)\n", a.cfg.Embedding.Dimensions)
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Upload documents into a conversation and wait for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := conversationID()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var failed int
			for _, path := range args {
				if err := ingestOne(cmd.Context(), a, convID, path); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
}

func ingestOne(ctx context.Context, a *app, convID uuid.UUID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc, err := a.service.UploadDocument(ctx, service.UploadRequest{
		UserID:         flagUser,
		ConversationID: convID,
		FileName:       filepath.Base(path),
		DeclaredType:   declaredType(path),
		Data:           data,
	})
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("processing %s", doc.FileName)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	for {
		status, err := a.service.DocumentStatus(ctx, flagUser, doc.ID)
		if err != nil {
			return err
		}
		switch status.Status {
		case db.StatusCompleted:
			fmt.Printf("%s: %d chunks indexed (document %s)\n", doc.FileName, status.ChunkCount, doc.ID)
			return nil
		case db.StatusFailed:
			detail := "unknown error"
			if status.ErrorDetail != nil {
				detail = *status.ErrorDetail
			}
			return fmt.Errorf("processing failed: %s", detail)
		}

		_ = bar.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
}

func declaredType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt", ".md", ".text":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Retrieve cited context for a question from the conversation's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := conversationID()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			topK := flagTopK
			if topK <= 0 {
				topK = a.cfg.Processing.TopK
			}
			rc, err := a.service.BuildContext(cmd.Context(), args[0], convID, topK)
			if err != nil {
				return err
			}
			if !rc.HasContext {
				fmt.Println("No relevant context found. Upload documents to this conversation first.")
				return nil
			}

			fmt.Println(rc.ContextText)
			fmt.Println()
			fmt.Println("Sources:")
			for _, src := range rc.Sources {
				fmt.Printf("  [%d] %s, section %d (similarity %.3f)\n      %s\n",
					src.Number, src.DocumentName, src.ChunkIndex+1, src.Similarity, src.Snippet)
			}
			return nil
		},
	}
}

func newDocumentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List the conversation's documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			convID, err := conversationID()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.service.ListDocuments(cmd.Context(), convID)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("no documents in this conversation")
				return nil
			}
			for _, doc := range docs {
				fmt.Printf("%s  %-10s  %4d chunks  %s\n", doc.ID, doc.Status, doc.ChunkCount, doc.FileName)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q: %w", args[0], err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.service.DeleteDocument(cmd.Context(), flagUser, docID); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", docID)
			return nil
		},
	}
}
