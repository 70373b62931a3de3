package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index course documents into the vector store",
	Long: `Parses every course document in a folder, chunks the lesson text,
and indexes it in Qdrant. Courses whose titles are already in the catalog
are skipped, so re-running ingest is safe.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "docs", "Folder containing course documents")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	system, store := buildSystem()

	if err := store.EnsureCollections(ctx, cfg.EmbeddingDim); err != nil {
		return fmt.Errorf("failed to prepare collections: %w", err)
	}

	courses, chunks, err := system.AddCourseFolder(ctx, ingestDir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	log.Printf("Ingest complete: %d new courses, %d chunks", courses, chunks)
	return nil
}
