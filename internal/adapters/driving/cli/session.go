package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

var sessionJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage question-answering sessions",
	Long: `Sessions isolate uploaded documents, their vector index and the
conversation history from each other. Use subcommands to create,
inspect, persist and remove sessions.`,
}

var sessionNewCmd = &cobra.Command{
	Use:     "new",
	Aliases: []string{"create"},
	Short:   "Create a new session",
	Args:    cobra.NoArgs,
	RunE:    runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's documents and history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionSaveCmd = &cobra.Command{
	Use:   "save [session-id]",
	Short: "Persist a session to disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionSave,
}

var sessionLoadCmd = &cobra.Command{
	Use:   "load [session-id]",
	Short: "Restore a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionLoad,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Remove a session and its persisted state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionListCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionSaveCmd)
	sessionCmd.AddCommand(sessionLoadCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Create(cmd.Context())
	if err != nil {
		return userError(err)
	}

	cmd.Println(session.ID)
	return nil
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	infos, err := sessionService.List(cmd.Context())
	if err != nil {
		return userError(err)
	}

	if sessionJSON {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sessions: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(infos) == 0 {
		cmd.Println("No sessions.")
		return nil
	}
	for _, info := range infos {
		cmd.Printf("%s  %s  %d document(s)\n",
			info.ID, info.CreatedAt.Format("2006-01-02 15:04"), info.DocumentCount)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Get(cmd.Context(), args[0])
	if err != nil {
		return userError(err)
	}

	cmd.Printf("Session %s\n", session.ID)
	cmd.Printf("Created: %s\n", session.CreatedAt.Format("2006-01-02 15:04"))
	if session.Unsynced {
		cmd.Println("Status: unsaved changes")
	}
	cmd.Println()

	cmd.Printf("Documents (%d):\n", len(session.Documents))
	for _, doc := range session.Documents {
		cmd.Printf("  %s  %s  %d chunk(s)\n", doc.ID, doc.Filename, len(doc.ChunkIDs))
	}

	if len(session.Turns) > 0 {
		cmd.Println()
		cmd.Printf("History (%d turns):\n", len(session.Turns))
		for _, turn := range session.Turns {
			cmd.Printf("  Q: %s\n", turn.Question)
			cmd.Printf("  A: %s\n", turn.Answer)
		}
	}
	return nil
}

func runSessionSave(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Persist(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return fmt.Errorf("session kept in memory but could not be saved: %w", err)
		}
		return userError(err)
	}
	cmd.Println("Session saved.")
	return nil
}

func runSessionLoad(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Load(cmd.Context(), args[0])
	if err != nil {
		return userError(err)
	}
	cmd.Printf("Loaded session %s (%d documents).\n", session.ID, len(session.Documents))
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Delete(cmd.Context(), args[0]); err != nil {
		return userError(err)
	}
	cmd.Println("Session deleted.")
	return nil
}
