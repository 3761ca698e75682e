package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitFindings is returned by audit when --fail-on-findings is set and any
// check failed.
const exitFindings = 3

var (
	version = "0.1.0"

	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "warden",
		Short: "Cloud account security auditor",
		Long: `Warden - Cloud Account Security Auditor

Warden discovers security relevant resources across every region of an
AWS account, derives facts such as internet exposure, and runs security
checks against the frozen inventory. Each check yields one PASS or FAIL
finding per resource.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError carries a process exit code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "%s\n", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Warden {{.Version}} - Cloud Account Security Auditor
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
