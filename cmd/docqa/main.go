package main

import (
	"fmt"
	"os"

	"github.com/claryon/docqa/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "Document question-answering CLI",
		Long: `Client for the document question-answering API.

Environment variables:
  DOCQA_BEARER_TOKEN   Bearer token for authentication (required)
  DOCQA_API_URL        API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.AddCommand(client.AskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
