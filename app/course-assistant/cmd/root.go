package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/campuskit/course-assistant/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "course-assistant",
	Short: "AI assistant for course materials",
	Long: `Course Assistant answers questions about indexed course materials.
It searches a vector index of course content on demand and synthesizes
answers with an LLM, citing the courses and lessons it drew upon.`,
	PersistentPreRun: loadRootConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func loadRootConfig(_ *cobra.Command, _ []string) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg = config.Load()
}
