package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Submission rejected
	ExitCommandError = 2 // Bad flags, unreadable files, database errors
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status string `json:"status"` // "ok" | "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type formatter struct {
	format string
	w      io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *formatter {
	return &formatter{format: opts.Format, w: w}
}

// ok writes data as JSON, or text when the format is text.
func (f *formatter) ok(data any, text string) error {
	if f.format == "json" {
		return f.json(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.w, text)
	return err
}

func (f *formatter) fail(data any, text string) error {
	if f.format == "json" {
		return f.json(Response{Status: "error", Data: data, Error: text})
	}
	_, err := fmt.Fprintln(f.w, text)
	return err
}

func (f *formatter) json(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
