package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter prints an error for the terminal and exits with the code
// of its category.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor returns 0 for nil, 1 for unclassified errors and the category
// code otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	c, ok := CategoryOf(err)
	if !ok {
		return 1
	}
	return c.ExitCode()
}

// FormatError renders err on one line. Internal errors stay terse unless verbose.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	switch {
	case a.verbose || !ok:
		return fmt.Sprintf("Error: %v", err)
	case classified.category == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	case classified.cause != nil:
		return fmt.Sprintf("Error: %s: %v", classified.message, classified.cause)
	default:
		return "Error: " + classified.message
	}
}

func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.log(err)
	fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) log(err error) {
	c, ok := CategoryOf(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	level := slog.LevelError
	if c.degraded() {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("category", string(c))}
	msg := "Build aborted"
	if classified, found := AsClassified(err); found {
		msg = classified.message
		if classified.retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		for k, v := range classified.fields {
			attrs = append(attrs, slog.Any(k, v))
		}
	} else {
		attrs = append(attrs, slog.Any("error", err))
	}
	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
