package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/paper-verify/internal/client/submission"
	model "github.com/zhouzirui/paper-verify/internal/model/submission"
)

func (a *app) newSubmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submission",
		Aliases: []string{"sub"},
		Short:   "Call the submission API",
	}
	cmd.AddCommand(
		a.newUploadCmd(),
		a.newCreateCmd(),
		a.newVerifyCmd(),
		a.newStatusCmd(),
		a.newResultsCmd(),
		a.newListCmd(),
		a.newReplaceCmd(),
		a.newRunCmd(),
	)
	return cmd
}

func (a *app) newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := uploadOne(cmd.Context(), a.submissionClient(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
}

func (a *app) newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <file-id>...",
		Short: "Create a submission from uploaded files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.submissionClient().CreateSubmission(cmd.Context(), model.IDs(args))
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
}

func (a *app) newVerifyCmd() *cobra.Command {
	var fileID string
	cmd := &cobra.Command{
		Use:   "verify <submission-id>",
		Short: "Start verification of a submission or one of its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.submissionClient()
			var (
				out *model.VerifyAck
				err error
			)
			if fileID != "" {
				out, err = c.VerifySubmissionFile(cmd.Context(), model.ID(args[0]), model.ID(fileID))
			} else {
				out, err = c.VerifySubmission(cmd.Context(), model.ID(args[0]))
			}
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "verify only this file id")
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <submission-id>",
		Short: "Show verification progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.submissionClient()
			if !wait {
				out, err := c.GetStatus(cmd.Context(), model.ID(args[0]))
				if err != nil {
					return err
				}
				return printJSON(a.out, out.Raw)
			}

			out, err := c.WaitForCompletion(cmd.Context(), model.ID(args[0]), a.cfg.Client.PollInterval, a.progress)
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the submission completes or fails")
	return cmd
}

func (a *app) newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <submission-id>",
		Short: "Fetch verification results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.submissionClient().GetResults(cmd.Context(), model.ID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Client.HistoryLimit
			}
			out, err := a.submissionClient().ListSubmissions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", submission.DefaultListLimit, "maximum number of submissions")
	return cmd
}

func (a *app) newReplaceCmd() *cobra.Command {
	var oldID, newID, filename string
	cmd := &cobra.Command{
		Use:   "replace <submission-id>",
		Short: "Replace one file of a submission with another uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.ReplaceFileRequest{OldFileID: model.ID(oldID), NewFileID: model.ID(newID), Filename: filename}
			out, err := a.submissionClient().ReplaceFile(cmd.Context(), model.ID(args[0]), req)
			if err != nil {
				return err
			}
			return printJSON(a.out, out.Raw)
		},
	}
	cmd.Flags().StringVar(&oldID, "old", "", "file id to replace")
	cmd.Flags().StringVar(&newID, "new", "", "uploaded file id to use instead")
	cmd.Flags().StringVar(&filename, "filename", "", "display name for the new file")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>...",
		Short: "Upload files, verify them as one submission and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.runSubmission(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(a.out, results.Raw)
		},
	}
}

// runSubmission uploads paths concurrently, then creates, verifies and waits
// for one submission.
func (a *app) runSubmission(ctx context.Context, paths []string) (*model.Results, error) {
	c := a.submissionClient()

	fileIDs := make([]model.ID, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Client.UploadParallelism, 1))
	for i, path := range paths {
		g.Go(func() error {
			out, err := uploadOne(gctx, c, path)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			fileIDs[i] = out.FileID
			a.logger.Info("uploaded", zap.String("filename", out.Filename), zap.Stringer("file_id", out.FileID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created, err := c.CreateSubmission(ctx, fileIDs)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.err, "submission %s created with %d files\n", created.SubmissionID, created.FileCount)

	if _, err := c.VerifySubmission(ctx, created.SubmissionID); err != nil {
		return nil, err
	}

	status, err := c.WaitForCompletion(ctx, created.SubmissionID, a.cfg.Client.PollInterval, a.progress)
	if err != nil {
		return nil, err
	}
	if status.Status == model.StatusFailed {
		return nil, fmt.Errorf("submission %s failed: %s", created.SubmissionID, status.CurrentStep)
	}

	return c.GetResults(ctx, created.SubmissionID)
}

func (a *app) progress(s *model.Status) {
	fmt.Fprintf(a.err, "[%3d%%] %s %s\n", s.Progress, s.Status, s.CurrentStep)
}

func uploadOne(ctx context.Context, c *submission.Client, path string) (*model.UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.UploadFile(ctx, filepath.Base(path), f)
}

// printJSON indents a raw response body. Bodies that are not JSON are printed
// as is.
func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
