package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driving"
)

var uploadAsync bool

var uploadCmd = &cobra.Command{
	Use:   "upload [session-id] [file]...",
	Short: "Index extracted document text into a session",
	Long: `Chunks, embeds and indexes one or more documents of extracted PDF
text. Each file holds plain text with pages separated by form feed
(\f) characters; a file without separators is treated as one page.

Indexing a document is all-or-nothing: if embedding fails partway,
nothing from that document is retained.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpload,
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage background upload jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show an upload job's state",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel an in-flight upload",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobCancel,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadAsync, "async", false, "index in the background and return job IDs")
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobCancelCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(jobCmd)
}

// readPages loads extracted page text. JSON files hold an array of
// {Number, Text} pages; anything else is plain text split into pages
// on form feeds.
func readPages(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var pages []domain.Page
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return pages, nil
	}

	var pages []domain.Page
	for i, text := range strings.Split(string(data), "\f") {
		pages = append(pages, domain.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	sessionID := args[0]
	for _, path := range args[1:] {
		pages, err := readPages(path)
		if err != nil {
			return err
		}
		filename := filepath.Base(path)

		if uploadAsync {
			jobID, err := sessionService.AddDocumentAsync(cmd.Context(), sessionID, filename, pages)
			if err != nil {
				return userError(err)
			}
			cmd.Printf("%s  %s\n", jobID, filename)
			continue
		}

		doc, err := sessionService.AddDocument(cmd.Context(), sessionID, filename, pages)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return userError(err)
			}
			return fmt.Errorf("%s not indexed, please retry: %w", filename, userError(err))
		}
		cmd.Printf("Indexed %s: %d chunk(s)\n", doc.Filename, len(doc.ChunkIDs))
	}
	return nil
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	job, err := sessionService.Job(cmd.Context(), args[0])
	if err != nil {
		return userError(err)
	}

	cmd.Printf("Job %s\n", job.ID)
	cmd.Printf("File: %s\n", job.Filename)
	cmd.Printf("Status: %s\n", job.Status)
	switch job.Status {
	case driving.JobDone:
		cmd.Printf("Indexed %d chunk(s) in %s\n",
			len(job.Document.ChunkIDs), job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond))
	case driving.JobFailed:
		cmd.Printf("Error: %s\n", job.Error)
	}
	return nil
}

func runJobCancel(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.CancelJob(cmd.Context(), args[0]); err != nil {
		return userError(err)
	}
	cmd.Println("Cancellation requested.")
	return nil
}
