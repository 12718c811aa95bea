package workflow

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/internal/fsutil"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/sirupsen/logrus"
	"io/fs"
	"os"
)

// Encrypt replaces the plaintext snapshot with an encrypted artifact.
// The plaintext must pass the same validation as Decrypt, and is deleted only once the artifact has been written,
// so at least one of the two exists at any time.
// With ModePublish, the password gated page is published after that.
// If publishing fails the artifact is already in place, and Publish can be run again on its own.
func (w *Workflow) Encrypt(ctx context.Context, pass gatecrypt.Password, mode Mode) (*Result, error) {
	r := w.newRun("encrypt")
	if len(pass) == 0 {
		return r.fail(ErrMissingCredential)
	}
	if mode == ModePublish && w.publisher == nil {
		return r.fail(errors.New("publishing is not configured"))
	}
	plain, err := os.ReadFile(w.paths.Plaintext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r.fail(fmt.Errorf("%w: %s", ErrMissingInput, w.paths.Plaintext))
		}
		return r.fail(err)
	}
	if err := w.validator.ValidateInput(string(plain)); err != nil {
		return r.fail(err)
	}

	salt, created, err := w.store.LoadOrCreate()
	if err != nil {
		return r.fail(err)
	}
	r.res.Salt = salt
	r.res.SaltCreated = created
	if created {
		r.log.Info("Created new salt config")
	}
	r.enter(SaltReady)

	key := w.deriver.Derive(pass, salt)
	r.enter(KeyDerived)

	artifact, err := gatecrypt.Encrypt(string(plain), key)
	if err != nil {
		return r.fail(err)
	}
	if err := fsutil.WriteFileAtomic(w.paths.Encrypted, []byte(artifact), 0o644); err != nil {
		return r.fail(fmt.Errorf("failed to write encrypted artifact: %w", err))
	}
	if err := os.Remove(w.paths.Plaintext); err != nil {
		return r.fail(fmt.Errorf("failed to delete plaintext artifact: %w", err))
	}
	r.enter(Encrypted)
	r.log.WithFields(logrus.Fields{
		"encrypted": w.paths.Encrypted,
		"bytes":     len(artifact),
	}).Info("Encrypted snapshot")

	if mode == ModePublish {
		out, err := w.publisher.Publish(ctx, pass, salt)
		if err != nil {
			return r.fail(err)
		}
		r.res.Published = out
		r.enter(Published)
	}
	return r.done()
}
