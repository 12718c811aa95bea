package workflow

import (
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/saylorsolutions/dashlock/pkg/hostpatch"
	"github.com/saylorsolutions/dashlock/pkg/saltstore"
)

var (
	ErrMissingCredential = errors.New("no password supplied")
	ErrMissingInput      = errors.New("plaintext artifact is missing")
	ErrInvalidInput      = errors.New("plaintext artifact is not a valid snapshot")

	ErrConfigMissing      = saltstore.ErrConfigMissing
	ErrMalformedEncoding  = gatecrypt.ErrMalformedEncoding
	ErrDecryptionFailed   = gatecrypt.ErrDecryptionFailed
	ErrExternalToolFailed = hostpatch.ErrExternalToolFailed
	ErrPatchPointNotFound = hostpatch.ErrPatchPointNotFound
)

// StepError reports the State a workflow was in when it failed.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
