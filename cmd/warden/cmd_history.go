package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/warden/internal/store"
)

var (
	historyLimit int
	historyCheck string
	historyARN   string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored audit runs",
	Long: `List audit runs recorded in the history database configured by
storage.path, newest first.

With --check and --arn, print the last recorded status of that check on that
resource instead.`,
	Example: `  warden history --config warden.toml
  warden history --config warden.toml --limit 5
  warden history --check sqs_queues_encrypted --arn arn:aws:sqs:us-east-1:111122223333:orders`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyCheck, "check", "", "Check ID to look up")
	historyCmd.Flags().StringVar(&historyARN, "arn", "", "Resource ARN to look up")
	historyCmd.MarkFlagsRequiredTogether("check", "arn")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath, overrides{})
	if err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("history requires storage.path in the config")
	}

	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if historyCheck != "" {
		return printPrevious(cmd.OutOrStdout(), s, historyCheck, historyARN)
	}

	runs, err := s.Runs(historyLimit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

func printRuns(w io.Writer, runs []store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REV\tRUN\tSTARTED\tDURATION\tPASSED\tFAILED\tDEGRADED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%t\n",
			r.Revision,
			r.RunID,
			r.StartedAt.Format(time.RFC3339),
			r.Duration.Round(time.Millisecond),
			r.Summary.Passed,
			r.Summary.Failed,
			r.Degraded,
		)
	}
	return tw.Flush()
}

// printPrevious prints the last recorded status of checkID on arn.
func printPrevious(w io.Writer, s *store.Store, checkID, arn string) error {
	st, err := s.Previous(checkID, arn)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no recorded status for %s on %s", checkID, arn)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tARN\tSTATUS\tREV\tRUN\tSEEN")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
		checkID,
		arn,
		st.Status,
		st.Revision,
		st.RunID,
		st.SeenAt.Format(time.RFC3339),
	)
	return tw.Flush()
}
