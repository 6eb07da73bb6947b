// Package main provides the docuflow binary: a command line client for the
// workflow engine API.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/docuflow/engine/cmd/docuflow/client"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "docuflow"
)

// Exit codes reported by the CLI
const (
	ExitOK         = 0
	ExitError      = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitTimeout    = 4
	ExitCancelled  = 5
)

// exitError carries an explicit exit code up to main
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exit.err)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(classify(err))
	}
}

// cliContext is shared state resolved from persistent flags
type cliContext struct {
	serverURL string
	timeout   time.Duration
}

func (c *cliContext) client() *client.Client {
	return client.New(c.serverURL, c.timeout)
}

func rootCmd() *cobra.Command {
	cli := &cliContext{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Workflow engine command line client",
		Long:          "docuflow submits, inspects and manages workflows on a running engine service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cli.serverURL, "server", envOr("DOCUFLOW_SERVER", "http://localhost:8080"), "Engine base URL")
	cmd.PersistentFlags().DurationVar(&cli.timeout, "timeout", 10*time.Minute, "HTTP client timeout")

	cmd.AddCommand(
		executeCmd(cli),
		resumeCmd(cli),
		waitCmd(cli),
		workflowCmd(cli),
		graphCmd(cli),
		templateCmd(cli),
		jobCmd(cli),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	}
}

// classify maps an error onto the CLI exit codes
func classify(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest:
			return ExitValidation
		case http.StatusNotFound:
			return ExitNotFound
		case http.StatusGatewayTimeout:
			return ExitTimeout
		default:
			return ExitError
		}
	}
	return ExitError
}

// classifyMessage maps an engine error message onto the CLI exit codes. Used
// for errors the server reports inside a 200 envelope.
func classifyMessage(message string) int {
	switch {
	case strings.HasPrefix(message, "validation error"):
		return ExitValidation
	case strings.Contains(message, "not found"):
		return ExitNotFound
	case strings.HasPrefix(message, "timeout"):
		return ExitTimeout
	case strings.Contains(message, "cancelled"):
		return ExitCancelled
	default:
		return ExitError
	}
}

// statusExitCode maps a terminal job status onto the CLI exit codes
func statusExitCode(status string) int {
	switch status {
	case "COMPLETED":
		return ExitOK
	case "TIMEOUT":
		return ExitTimeout
	case "CANCELLED":
		return ExitCancelled
	default:
		return ExitError
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
