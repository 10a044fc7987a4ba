package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgard/formdesk/internal/field"
)

var (
	fieldName        string
	fieldLabel       string
	fieldType        string
	fieldPlaceholder string
	fieldRequired    bool
	fieldOrder       int
	fieldOptions     string
)

func fieldFailure(a *app, err error) error {
	st := a.store.Snapshot().Fields
	return failure(err, st.Error, st.FieldErrors)
}

func printFields(cmd *cobra.Command, fields []field.Field) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, fields)
	}
	tw := newTable(out, "ID", "ORDER", "LABEL", "TYPE", "REQUIRED", "OPTIONS")
	for _, f := range fields {
		opts := "-"
		if len(f.Options) > 0 {
			opts = strings.Join(f.Options, ", ")
		}
		row(tw, f.ID, f.Order, f.Label, f.FieldType, yesNo(f.Required), opts)
	}
	return tw.Flush()
}

var fieldsCmd = &cobra.Command{
	Use:               "fields",
	Short:             "Manage the fields of a form",
	PersistentPreRunE: requireSession,
}

var fieldsListCmd = &cobra.Command{
	Use:   "list FORM_ID",
	Short: "List a form's fields in display order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		a := current
		res, err := a.store.Fields.List(ctxOf(cmd), formID)
		if err != nil {
			return fieldFailure(a, err)
		}
		return printFields(cmd, res.Fields)
	},
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add FORM_ID",
	Short: "Add a field to a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		typ, err := field.ParseType(fieldType)
		if err != nil {
			return err
		}
		in := field.CreateInput{
			FieldName:   fieldName,
			FieldType:   typ,
			Label:       fieldLabel,
			Placeholder: fieldPlaceholder,
			IsRequired:  fieldRequired,
			OrderNumber: fieldOrder,
			Options:     field.ParseOptions(fieldOptions),
		}
		if in.FieldName == "" {
			in.FieldName = fieldLabel
		}
		a := current
		f, err := a.store.Fields.Create(ctxOf(cmd), formID, in)
		if err != nil {
			return fieldFailure(a, err)
		}
		return printFields(cmd, []field.Field{*f})
	},
}

var fieldsUpdateCmd = &cobra.Command{
	Use:   "update FIELD_ID",
	Short: "Change a field; only the flags given are sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "field")
		if err != nil {
			return err
		}
		var in field.UpdateInput
		flags := cmd.Flags()
		if flags.Changed("name") {
			in.FieldName = &fieldName
		}
		if flags.Changed("label") {
			in.Label = &fieldLabel
		}
		if flags.Changed("type") {
			typ, err := field.ParseType(fieldType)
			if err != nil {
				return err
			}
			in.FieldType = &typ
		}
		if flags.Changed("placeholder") {
			in.Placeholder = &fieldPlaceholder
		}
		if flags.Changed("required") {
			in.IsRequired = &fieldRequired
		}
		if flags.Changed("order") {
			in.OrderNumber = &fieldOrder
		}
		if flags.Changed("options") {
			opts := field.ParseOptions(fieldOptions)
			in.Options = &opts
		}
		a := current
		f, err := a.store.Fields.Update(ctxOf(cmd), id, in)
		if err != nil {
			return fieldFailure(a, err)
		}
		return printFields(cmd, []field.Field{*f})
	},
}

var fieldsDeleteCmd = &cobra.Command{
	Use:   "delete FIELD_ID",
	Short: "Delete a field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "field")
		if err != nil {
			return err
		}
		a := current
		if err := a.store.Fields.Delete(ctxOf(cmd), id); err != nil {
			return fieldFailure(a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %d\n", id)
		return nil
	},
}

var fieldsReorderCmd = &cobra.Command{
	Use:   "reorder FORM_ID FIELD_ID...",
	Short: "Put a form's fields in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		formID, err := parseID(args[0], "form")
		if err != nil {
			return err
		}
		orders := make([]field.Order, 0, len(args)-1)
		for i, arg := range args[1:] {
			id, err := parseID(arg, "field")
			if err != nil {
				return err
			}
			orders = append(orders, field.Order{FieldID: id, Order: i + 1})
		}
		a := current
		res, err := a.store.Fields.Reorder(ctxOf(cmd), formID, orders)
		if err != nil {
			return fieldFailure(a, err)
		}
		return printFields(cmd, res.Fields)
	},
}

func init() {
	typeNames := make([]string, len(field.Types))
	for i, t := range field.Types {
		typeNames[i] = string(t)
	}
	for _, c := range []*cobra.Command{fieldsAddCmd, fieldsUpdateCmd} {
		c.Flags().StringVar(&fieldName, "name", "", "field name (default: the label)")
		c.Flags().StringVar(&fieldLabel, "label", "", "label shown to respondents")
		c.Flags().StringVar(&fieldType, "type", string(field.TypeText), "one of "+strings.Join(typeNames, ", "))
		c.Flags().StringVar(&fieldPlaceholder, "placeholder", "", "placeholder text")
		c.Flags().BoolVar(&fieldRequired, "required", false, "answer is required")
		c.Flags().IntVar(&fieldOrder, "order", 1, "display position, starting at 1")
		c.Flags().StringVar(&fieldOptions, "options", "", "comma separated choices for select, radio and checkbox fields")
	}

	fieldsCmd.AddCommand(fieldsListCmd, fieldsAddCmd, fieldsUpdateCmd, fieldsDeleteCmd, fieldsReorderCmd)
	rootCmd.AddCommand(fieldsCmd)
}
