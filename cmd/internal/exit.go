package internal

import (
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/pkg/workflow"
	"os"
	"strings"
)

// Exit codes for each failure class. 0 is success, including an intentional no-op.
const (
	ExitFailure           = 1
	ExitMissingCredential = 2
	ExitMissingInput      = 3
	ExitConfigMissing     = 4
	ExitMalformedEncoding = 5
	ExitDecryptionFailed  = 6
	ExitExternalTool      = 7
	ExitPatchPoint        = 8
)

// ExitCode maps an error to the process exit code.
// Malformed encoding is checked first since it's also reported as a decryption failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, workflow.ErrMissingCredential):
		return ExitMissingCredential
	case errors.Is(err, workflow.ErrMissingInput), errors.Is(err, workflow.ErrInvalidInput):
		return ExitMissingInput
	case errors.Is(err, workflow.ErrConfigMissing):
		return ExitConfigMissing
	case errors.Is(err, workflow.ErrMalformedEncoding):
		return ExitMalformedEncoding
	case errors.Is(err, workflow.ErrDecryptionFailed):
		return ExitDecryptionFailed
	case errors.Is(err, workflow.ErrExternalToolFailed):
		return ExitExternalTool
	case errors.Is(err, workflow.ErrPatchPointNotFound):
		return ExitPatchPoint
	default:
		return ExitFailure
	}
}

// Fatal will Echo the message and os.Exit with code 1.
func Fatal(msg string, args ...any) {
	Echo(msg, args...)
	os.Exit(ExitFailure)
}

// FatalErr will Echo the error and os.Exit with the code from ExitCode.
func FatalErr(err error) {
	Echo("Error: %v", err)
	os.Exit(ExitCode(err))
}

// Echo will emit the given message without any logging formatting.
func Echo(msg string, args ...any) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = fmt.Fprintf(os.Stderr, msg, args...)
}
