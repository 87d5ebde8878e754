package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

var (
	askTopK int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [session-id] [question]",
	Short: "Retrieve the passages most relevant to a question",
	Long: `Embeds the question, searches the session's vector index and prints
the best-matching passages with page-level citations. The output is
the context an answer-generation collaborator would receive; RegCap
itself does not generate answers.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from settings)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	sessionID, question := args[0], args[1]

	qc, err := retrievalService.BuildContext(cmd.Context(), sessionID, question,
		domain.RetrievalOptions{TopK: askTopK})
	if err != nil {
		return userError(err)
	}

	if askJSON {
		data, err := json.MarshalIndent(qc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(qc.Items) == 0 {
		cmd.Println("No relevant passages found. Upload documents first.")
		return nil
	}

	for i, item := range qc.Items {
		cmd.Printf("  [%d] %s\n", i+1, item.Citation)
		cmd.Printf("      %s\n", item.Text)
		cmd.Println()
	}

	cmd.Println("Sources:")
	for _, source := range qc.Sources {
		cmd.Printf("  - %s\n", source)
	}
	return nil
}
