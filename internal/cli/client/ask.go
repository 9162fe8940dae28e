package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest represents the run API request.
type AskRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

// AskResponse represents the run API response.
type AskResponse struct {
	Answers []string `json:"answers"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var questions []string

	cmd := &cobra.Command{
		Use:   "ask <document-url>",
		Short: "Ask questions about a document",
		Long:  "Sends a document URL and one or more questions to the server and prints the answers.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], questions, outputJSON)
		},
	}

	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to ask (repeatable)")
	cmd.Flags().Bool("output", false, "Print the raw JSON response")
	cmd.Flags().String("token", "", "Bearer token (overrides DOCQA_BEARER_TOKEN)")
	cmd.Flags().String("api-url", "", "Server URL (overrides DOCQA_API_URL)")

	return cmd
}

func runAsk(cmd *cobra.Command, documentURL string, questions []string, outputJSON bool) error {
	if len(questions) == 0 {
		return fmt.Errorf("at least one --question is required")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := AskRequest{
		Documents: documentURL,
		Questions: questions,
	}

	var resp AskResponse
	if err := api.Post("/hackrx/run", req, &resp); err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	for i, answer := range resp.Answers {
		if i < len(questions) {
			fmt.Printf("Q: %s\n", questions[i])
		}
		fmt.Printf("A: %s\n", answer)
		if i < len(resp.Answers)-1 {
			fmt.Println()
		}
	}

	return nil
}
