package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alecgard/formdesk/internal/field"
	"github.com/alecgard/formdesk/internal/form"
	"github.com/alecgard/formdesk/internal/submission"
)

var (
	listPage    int
	listLimit   int
	formTitle   string
	formDesc    string
	formPublish bool
	formExpires string
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func parseExpiry(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if d, derr := time.Parse(time.DateOnly, s); derr == nil {
			return &d, nil
		}
		return nil, fmt.Errorf("--expires must be RFC3339 or YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

func formFailure(a *app, err error) error {
	st := a.store.Snapshot().Forms
	return failure(err, st.Error, st.FieldErrors)
}

func printForm(cmd *cobra.Command, f *form.Form) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, f)
	}
	tw := newTable(out, "ID", "TITLE", "PUBLISHED", "EXPIRES", "UPDATED")
	expires := "-"
	if f.ExpiresAt != nil {
		expires = ago(*f.ExpiresAt)
	}
	row(tw, f.ID, f.Title, yesNo(f.IsPublished), expires, ago(f.UpdatedAt))
	if err := tw.Flush(); err != nil {
		return err
	}
	if f.Description != "" {
		fmt.Fprintf(out, "\n%s\n", f.Description)
	}
	return nil
}

var formsCmd = &cobra.Command{
	Use:               "forms",
	Short:             "Manage forms",
	PersistentPreRunE: requireSession,
}

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your forms, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		page, err := a.store.Forms.List(ctxOf(cmd), form.ListParams{Page: listPage, Limit: listLimit})
		if err != nil {
			return formFailure(a, err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, page)
		}
		st := a.store.Snapshot().Forms
		tw := newTable(out, "ID", "TITLE", "PUBLISHED", "CREATED")
		for _, f := range st.Forms {
			row(tw, f.ID, f.Title, yesNo(f.IsPublished), ago(f.CreatedAt))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printPagination(out, st.Pagination)
		return nil
	},
}

var formsGetCmd = &cobra.Command{
	Use:   "get FORM_ID",
	Short: "Show one form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		f, err := a.store.Forms.Get(ctxOf(cmd), id)
		if err != nil {
			return formFailure(a, err)
		}
		return printForm(cmd, f)
	},
}

var formsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a form",
	RunE: func(cmd *cobra.Command, args []string) error {
		expires, err := parseExpiry(formExpires)
		if err != nil {
			return err
		}
		in := form.CreateInput{Title: formTitle, Description: formDesc, ExpiresAt: expires}
		if cmd.Flags().Changed("publish") {
			in.IsPublished = &formPublish
		}
		a := current
		f, err := a.store.Forms.Create(ctxOf(cmd), in)
		if err != nil {
			return formFailure(a, err)
		}
		return printForm(cmd, f)
	},
}

var formsUpdateCmd = &cobra.Command{
	Use:   "update FORM_ID",
	Short: "Change a form; only the flags given are sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		var in form.UpdateInput
		flags := cmd.Flags()
		if flags.Changed("title") {
			in.Title = &formTitle
		}
		if flags.Changed("description") {
			in.Description = &formDesc
		}
		if flags.Changed("publish") {
			in.IsPublished = &formPublish
		}
		if flags.Changed("expires") {
			if in.ExpiresAt, err = parseExpiry(formExpires); err != nil {
				return err
			}
		}
		a := current
		f, err := a.store.Forms.Update(ctxOf(cmd), id, in)
		if err != nil {
			return formFailure(a, err)
		}
		return printForm(cmd, f)
	},
}

var formsDeleteCmd = &cobra.Command{
	Use:   "delete FORM_ID...",
	Short: "Delete forms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, len(args))
		for i, arg := range args {
			id, err := parseID(arg, "form")
			if err != nil {
				return err
			}
			ids[i] = id
		}
		a := current
		g, ctx := errgroup.WithContext(ctxOf(cmd))
		for _, id := range ids {
			g.Go(func() error {
				return a.store.Forms.Delete(ctx, id)
			})
		}
		if err := g.Wait(); err != nil {
			return formFailure(a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d form(s)\n", len(ids))
		return nil
	},
}

// formOverview is what `forms show` prints.
type formOverview struct {
	Form   *form.Form        `json:"form"`
	Fields []field.Field     `json:"fields"`
	Stats  *submission.Stats `json:"stats"`
}

var formsShowCmd = &cobra.Command{
	Use:   "show FORM_ID",
	Short: "Show a form with its fields and submission stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		var ov formOverview
		g, ctx := errgroup.WithContext(ctxOf(cmd))
		g.Go(func() error {
			f, err := a.store.Forms.Get(ctx, id)
			if err != nil {
				return formFailure(a, err)
			}
			ov.Form = f
			return nil
		})
		g.Go(func() error {
			res, err := a.store.Fields.List(ctx, id)
			if err != nil {
				return fieldFailure(a, err)
			}
			ov.Fields = res.Fields
			return nil
		})
		g.Go(func() error {
			st, err := a.store.Submissions.Stats(ctx, id)
			if err != nil {
				return submissionFailure(a, err)
			}
			ov.Stats = st
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, ov)
		}
		if err := printForm(cmd, ov.Form); err != nil {
			return err
		}
		fmt.Fprintln(out)
		if err := printFields(cmd, ov.Fields); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return printStats(cmd, ov.Stats)
	},
}

func init() {
	formsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	formsListCmd.Flags().IntVar(&listLimit, "limit", 0, "page size (default from config)")

	for _, c := range []*cobra.Command{formsCreateCmd, formsUpdateCmd} {
		c.Flags().StringVar(&formTitle, "title", "", "form title")
		c.Flags().StringVar(&formDesc, "description", "", "form description")
		c.Flags().BoolVar(&formPublish, "publish", false, "accept public submissions")
		c.Flags().StringVar(&formExpires, "expires", "", "stop accepting submissions after this time (RFC3339 or YYYY-MM-DD)")
	}

	formsCmd.AddCommand(formsListCmd, formsGetCmd, formsCreateCmd, formsUpdateCmd, formsDeleteCmd, formsShowCmd)
	rootCmd.AddCommand(formsCmd)
}
