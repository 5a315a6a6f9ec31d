package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/roach88/cobs/internal/cob"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (unknown issue, rejected edit, diverged replay)
	ExitCommandError = 2 // Command error (bad flags, unreadable key or database)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
	Color   bool
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// describe builds the envelope for err: the cob error code and the issue
// and action it names when there is one, otherwise a generic command or
// failure code.
func describe(err error) CLIError {
	e := CLIError{Message: err.Error()}
	var cerr *cob.Error
	if errors.As(err, &cerr) {
		e.Code = string(cerr.Code)
		if cerr.IssueID != "" || cerr.ActionID != "" {
			e.Details = map[string]string{}
			if cerr.IssueID != "" {
				e.Details["issue"] = string(cerr.IssueID)
			}
			if cerr.ActionID != "" {
				e.Details["action"] = string(cerr.ActionID)
			}
		}
		return e
	}
	if GetExitCode(err) == ExitCommandError {
		e.Code = "COMMAND"
	} else {
		e.Code = "FAILURE"
	}
	return e
}

// Render writes data as a JSON envelope, or calls text in text mode.
func (f *OutputFormatter) Render(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Error reports err in the configured format. Text output names the code
// and, with Verbose, the ids it concerns.
func (f *OutputFormatter) Error(err error) error {
	e := describe(err)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &e})
	}

	if _, werr := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message); werr != nil {
		return werr
	}
	if f.Verbose {
		for _, k := range slices.Sorted(maps.Keys(e.Details)) {
			fmt.Fprintf(f.Writer, "  %s: %s\n", k, e.Details[k])
		}
	}
	return nil
}

// Table returns a table writer that renders to w.
func (f *OutputFormatter) Table(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

// paint colors s when color output is enabled.
func (f *OutputFormatter) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if f.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// State renders a lifecycle state, green when open and red when closed.
func (f *OutputFormatter) State(s cob.State) string {
	if s.IsOpen() {
		return f.paint(s.String(), color.FgGreen)
	}
	return f.paint(s.String(), color.FgRed)
}

// Mark renders a pass/fail mark.
func (f *OutputFormatter) Mark(ok bool) string {
	if ok {
		return f.paint("✓", color.FgGreen)
	}
	return f.paint("✗", color.FgRed, color.Bold)
}

// formatTime renders unix milliseconds in UTC.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func shortIDs(ids []cob.ActionID) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Short())
	}
	return strings.Join(out, ",")
}
