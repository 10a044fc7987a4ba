package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/submission"
)

var (
	exportFormat  string
	submitAnswers []string
	submitFiles   []string
)

func submissionFailure(a *app, err error) error {
	st := a.store.Snapshot().Submissions
	return failure(err, st.Error, st.FieldErrors)
}

func printStats(cmd *cobra.Command, st *submission.Stats) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, st)
	}
	tw := newTable(out, "TOTAL", "TODAY", "7 DAYS", "30 DAYS")
	row(tw, humanize.Comma(int64(st.TotalSubmissions)), st.TodaySubmissions, st.WeekSubmissions, st.MonthSubmissions)
	return tw.Flush()
}

func formatAnswer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = formatAnswer(p)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func printSubmission(cmd *cobra.Command, sub *submission.Submission) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, sub)
	}
	fmt.Fprintf(out, "Submission %d to form %d, %s\n\n", sub.ID, sub.FormID, ago(sub.SubmittedAt))
	tw := newTable(out, "FIELD", "VALUE")
	for _, a := range sub.Data {
		row(tw, a.FieldID, formatAnswer(a.Value))
	}
	if len(sub.Files) > 0 {
		row(tw, "files", strings.Join(sub.Files, ", "))
	}
	return tw.Flush()
}

// parseAnswer reads FIELD_ID=VALUE. A value starting with '[' is decoded as
// a JSON array for multi-choice fields.
func parseAnswer(s string) (submission.Answer, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return submission.Answer{}, fmt.Errorf("answer %q must be FIELD_ID=VALUE", s)
	}
	id, err := parseID(k, "field")
	if err != nil {
		return submission.Answer{}, err
	}
	if strings.HasPrefix(v, "[") {
		var list []any
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return submission.Answer{}, fmt.Errorf("answer for field %d: %w", id, err)
		}
		return submission.Answer{FieldID: id, Value: list}, nil
	}
	return submission.Answer{FieldID: id, Value: v}, nil
}

var submissionsCmd = &cobra.Command{
	Use:               "submissions",
	Short:             "Read and export form submissions",
	PersistentPreRunE: requireSession,
}

var submissionsListCmd = &cobra.Command{
	Use:   "list FORM_ID",
	Short: "List a form's submissions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		page, err := a.store.Submissions.List(ctxOf(cmd), submission.ListParams{FormID: formID, Page: listPage, Limit: listLimit})
		if err != nil {
			return submissionFailure(a, err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, page)
		}
		st := a.store.Snapshot().Submissions
		tw := newTable(out, "ID", "ANSWERS", "FILES", "SUBMITTED")
		for _, sub := range st.Submissions {
			row(tw, sub.ID, len(sub.Data), len(sub.Files), ago(sub.SubmittedAt))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printPagination(out, st.Pagination)
		return nil
	},
}

var submissionsGetCmd = &cobra.Command{
	Use:   "get SUBMISSION_ID",
	Short: "Show one submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "submission")
		if err != nil {
			return err
		}
		a := current
		sub, err := a.store.Submissions.Get(ctxOf(cmd), id)
		if err != nil {
			return submissionFailure(a, err)
		}
		return printSubmission(cmd, sub)
	},
}

var submissionsDeleteCmd = &cobra.Command{
	Use:   "delete SUBMISSION_ID",
	Short: "Delete a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "submission")
		if err != nil {
			return err
		}
		a := current
		if err := a.store.Submissions.Delete(ctxOf(cmd), id); err != nil {
			return submissionFailure(a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted submission %d\n", id)
		return nil
	},
}

var submissionsStatsCmd = &cobra.Command{
	Use:   "stats FORM_ID",
	Short: "Show submission counts for a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		st, err := a.store.Submissions.Stats(ctxOf(cmd), formID)
		if err != nil {
			return submissionFailure(a, err)
		}
		return printStats(cmd, st)
	},
}

var submissionsExportCmd = &cobra.Command{
	Use:   "export FORM_ID",
	Short: "Download a form's submissions into the export directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		format := exportFormat
		if format == "" {
			format = a.cfg.Export.Format
		}
		res, err := a.store.Submissions.Export(ctxOf(cmd), formID, format)
		if err != nil {
			return submissionFailure(a, err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "Wrote %s (%s)\n", res.Path, humanize.Bytes(uint64(res.Size)))
		return nil
	},
}

var submissionsSubmitCmd = &cobra.Command{
	Use:   "submit FORM_ID",
	Short: "Submit answers to a published form; no login needed",
	Args:  cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp()
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		answers := make([]submission.Answer, 0, len(submitAnswers))
		for _, s := range submitAnswers {
			ans, err := parseAnswer(s)
			if err != nil {
				return err
			}
			answers = append(answers, ans)
		}

		files := make([]client.File, 0, len(submitFiles))
		for _, path := range submitFiles {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening attachment: %w", err)
			}
			defer f.Close()
			files = append(files, client.File{
				Name:        filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Content:     f,
			})
		}

		a := current
		res, err := a.store.Submissions.Submit(ctxOf(cmd), formID, answers, files)
		if err != nil {
			return submissionFailure(a, err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Submitted, id %d\n", res.SubmissionID)
		return nil
	},
}

func init() {
	submissionsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	submissionsListCmd.Flags().IntVar(&listLimit, "limit", 0, "page size (default from config)")
	submissionsExportCmd.Flags().StringVar(&exportFormat, "format", "", "csv or json (default from config)")
	submissionsSubmitCmd.Flags().StringArrayVar(&submitAnswers, "answer", nil, "FIELD_ID=VALUE, repeatable; use a JSON array for multiple choices")
	submissionsSubmitCmd.Flags().StringArrayVar(&submitFiles, "file", nil, "attachment path, repeatable")

	submissionsCmd.AddCommand(submissionsListCmd, submissionsGetCmd, submissionsDeleteCmd, submissionsStatsCmd, submissionsExportCmd, submissionsSubmitCmd)
	rootCmd.AddCommand(submissionsCmd)
}
