package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/warden/internal/check"
)

// checksCmd represents the checks command
var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the registered checks",
	Long: `List every built-in check and, when custom_checks is configured, the
custom rego checks, with their severity and resource kind.`,
	RunE: runChecks,
}

func init() {
	rootCmd.AddCommand(checksCmd)
}

func runChecks(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath, overrides{})
	if err != nil {
		return err
	}
	runner, err := buildRunner(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return printChecks(cmd.OutOrStdout(), runner.Checks())
}

func printChecks(w io.Writer, checks []check.Check) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tKIND\tTITLE")
	for _, c := range checks {
		m := c.Metadata()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Severity, m.Kind, m.Title)
	}
	return tw.Flush()
}
