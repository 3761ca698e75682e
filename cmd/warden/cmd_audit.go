package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/warden/internal/report"
	"github.com/yairfalse/warden/internal/telemetry"
)

var (
	auditFlags     overrides
	failOnFindings bool
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one audit and print the findings",
	Long: `Run one audit of the account and write the report.

Resources are discovered in every audited region, the inventory is frozen,
and every selected check runs against it. Regions that fail are reported as
degraded; the audit still completes.`,
	Example: `  warden audit                                  # All enabled regions
  warden audit --region us-east-1 --region eu-west-1
  warden audit --check 'sqs_*' --output report.json
  warden audit --resource 'arn:aws:sqs:*:*:orders*'
  warden audit --fail-on-findings               # Exit 3 on any FAIL`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	f := auditCmd.Flags()
	f.StringSliceVar(&auditFlags.regions, "region", nil, "Region to audit (repeatable, default all enabled)")
	f.StringVar(&auditFlags.profile, "profile", "", "AWS shared config profile")
	f.StringSliceVar(&auditFlags.checks, "check", nil, "Check id glob to run (repeatable)")
	f.StringSliceVar(&auditFlags.resources, "resource", nil, "ARN glob to audit (repeatable)")
	f.StringVar(&auditFlags.output, "output", "", "Write the JSON report to this file instead of stdout")
	f.IntVar(&auditFlags.workers, "workers", 0, "Maximum concurrent region calls")
	f.DurationVar(&auditFlags.timeout, "timeout", 0, "Timeout for each region call")
	f.BoolVar(&failOnFindings, "fail-on-findings", false, "Exit with code 3 when any check fails")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	o := auditFlags
	o.debug = debug
	cfg, err := loadConfig(configPath, o)
	if err != nil {
		return err
	}
	if err := telemetry.SetupLogging(cfg.Log.Level, cfg.Log.Console); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownProvider(provider)

	emit, err := buildEmitter(cfg, provider, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = emit.Close() }()

	eng, err := buildEngine(ctx, cfg, provider, emit)
	if err != nil {
		return err
	}

	rep, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	return auditResult(rep, failOnFindings)
}

// auditResult maps a report to the process outcome.
func auditResult(rep *report.Report, failOnFindings bool) error {
	if failOnFindings && rep.Summary.Failed > 0 {
		return &exitError{
			code: exitFindings,
			msg:  fmt.Sprintf("%d failing findings", rep.Summary.Failed),
		}
	}
	return nil
}

func shutdownProvider(p *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}
