package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	jsonOutput  bool
	showMetrics bool
)

var rootCmd = &cobra.Command{
	Use:          "formdesk",
	Short:        "formdesk: form builder client",
	Long:         "formdesk manages forms, their fields and submissions against a form builder backend. It keeps the session token on disk between runs.",
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !showMetrics || current == nil {
			return nil
		}
		return printMetrics(cmd.OutOrStdout(), current.metrics)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus FORMDESK_* env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of tables")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print a client metrics summary after the command")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
