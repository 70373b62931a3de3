package cmd

import (
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"github.com/campuskit/course-assistant/internal/ai"
	"github.com/campuskit/course-assistant/internal/api"
	"github.com/campuskit/course-assistant/internal/ingest"
	"github.com/campuskit/course-assistant/internal/rag"
	"github.com/campuskit/course-assistant/internal/session"
	"github.com/campuskit/course-assistant/internal/telemetry"
	"github.com/campuskit/course-assistant/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the HTTP server exposing the query API. Expects a running
Qdrant instance with course material already ingested (see 'ingest').`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Port, "port", "8000", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:      cfg.TelemetryEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			log.Printf("Telemetry shutdown failed: %v", err)
		}
	}()

	system, _ := buildSystem()

	log.Printf("Using model %s", cfg.AnthropicModel)
	server := api.NewServer(system)
	return server.Start(cfg.Port)
}

// buildSystem wires the query pipeline from configuration. The concrete store
// is returned alongside for callers that manage collections directly.
func buildSystem() (*rag.System, *vectorstore.Store) {
	anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	sender := ai.NewStreamingMessageSender(anthropicClient)
	generator := ai.NewGenerator(sender, anthropic.Model(cfg.AnthropicModel), ai.SystemPrompt(), cfg.RequestTimeout)

	embedder := vectorstore.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	store := vectorstore.NewStore(cfg.QdrantURL, cfg.QdrantAPIKey, embedder, cfg.MaxResults)

	sessions := session.NewManager(cfg.MaxHistory)
	processor := ingest.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap)

	return rag.NewSystem(generator, sessions, store, processor), store
}
