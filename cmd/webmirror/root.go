// Package main provides the entry point for the webmirror CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitCodeError carries a crawl's computed exit status through cobra's
// error return so Execute can report it to the operating system.
type exitCodeError struct {
	code int
}

// Error describes the exit status.
func (e *exitCodeError) Error() string {
	return fmt.Sprintf("crawl finished with exit status %d", e.code)
}

// NewRootCmd creates the root command for webmirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webmirror",
		Short: "Recursive, resumable website archiver",
		Long: `webmirror crawls one or more seed URLs recursively and archives every
exchange into a local mirror tree. Crawl state lives in a SQLite frontier,
so an interrupted run resumes from where it stopped.

Supported protocols: http, https, ftp.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewGetCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the crawl's status code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			// The summary already went to stderr; only the code remains.
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
