package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func newIngestCommand(a *app) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Index well reports",
		Long: `Uploads and indexes PDF, HTML or plain text reports.
Each file is chunked for every embedding strategy before the command moves on.
Files indexed earlier are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}

			var failed []error
			for _, path := range args {
				if err := ingestFile(cmd, services, path, mimeType); err != nil {
					cmd.PrintErrf("  %s: %v\n", filepath.Base(path), err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "override the detected content type")
	return cmd
}

func ingestFile(cmd *cobra.Command, services *Services, path, mimeType string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}

	doc, err := services.Ingest.Upload(cmd.Context(), filepath.Base(path), mimeType, file)
	if domain.IsKind(err, domain.ErrAlreadyIndexed) {
		cmd.Printf("  %s: already indexed, skipped\n", filepath.Base(path))
		return nil
	}
	if err != nil {
		return err
	}

	if fresh, err := services.Docs.GetByID(cmd.Context(), doc.ID); err == nil {
		doc = fresh
	}
	cmd.Printf("  %s: %s, %d pages, %d chunks", doc.Filename, doc.Status, doc.PageCount, doc.ChunkCount)
	if len(doc.Wells) > 0 {
		cmd.Printf(", wells %s", strings.Join(doc.Wells, ", "))
	}
	cmd.Println()
	return nil
}
