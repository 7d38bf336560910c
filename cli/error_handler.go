package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/agentwatch/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	var awErr *errors.AgentwatchError
	stderrors.As(err, &awErr)
	detail := func(key string) interface{} {
		if awErr == nil {
			return nil
		}
		return awErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Configuration file %v not found. Run 'agentwatch paths' to see where agentwatch looks for it.\n", detail("path"))

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'agentwatch config schema' to see the accepted settings.\n")

	case errors.ErrCodeAlreadyRunning:
		fmt.Fprintf(h.Out, "agentwatch is already running (PID %v).\n", detail("pid"))

	case errors.ErrCodeLockBusy, errors.ErrCodeLockFailed:
		fmt.Fprintf(h.Out, "%v is locked by another process. Try again in a moment.\n", detail("path"))

	case errors.ErrCodeSettingsInvalid:
		fmt.Fprintf(h.Out, "Hook settings file %v could not be parsed and was left unchanged.\n", detail("path"))

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "Error: %v\n", err)

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	// If verbose mode, show full error details
	if h.Verbose && awErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", awErr.ToJSON())
	}
	return err
}
