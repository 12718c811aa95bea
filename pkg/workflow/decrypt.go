package workflow

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/internal/fsutil"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"os"
)

// Decrypt restores the plaintext snapshot from the encrypted artifact.
// Having no artifact isn't an error, since that's the state before the first Encrypt.
// Nothing is written unless the decrypted snapshot passes validation.
func (w *Workflow) Decrypt(pass gatecrypt.Password) (*Result, error) {
	r := w.newRun("decrypt")
	if len(pass) == 0 {
		return r.fail(ErrMissingCredential)
	}
	ok, err := fsutil.Exists(w.paths.Encrypted)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		r.res.Skipped = true
		r.log.WithField("encrypted", w.paths.Encrypted).Info("No encrypted artifact, nothing to decrypt")
		return r.done()
	}

	plain, err := w.recoverSnapshot(r, pass)
	if err != nil {
		return r.fail(err)
	}
	if err := fsutil.WriteFileAtomic(w.paths.Plaintext, []byte(plain), 0o600); err != nil {
		return r.fail(fmt.Errorf("failed to write plaintext artifact: %w", err))
	}
	r.log.WithField("plaintext", w.paths.Plaintext).Info("Decrypted snapshot")
	return r.done()
}

// Publish publishes the password gated page for the existing encrypted artifact.
// The password is checked against the artifact first, so a gate is never published with a password that can't read the data.
func (w *Workflow) Publish(ctx context.Context, pass gatecrypt.Password) (*Result, error) {
	r := w.newRun("publish")
	if len(pass) == 0 {
		return r.fail(ErrMissingCredential)
	}
	if w.publisher == nil {
		return r.fail(errors.New("publishing is not configured"))
	}
	ok, err := fsutil.Exists(w.paths.Encrypted)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		return r.fail(fmt.Errorf("%w: no encrypted artifact at %s", ErrMissingInput, w.paths.Encrypted))
	}
	if _, err := w.recoverSnapshot(r, pass); err != nil {
		return r.fail(err)
	}

	out, err := w.publisher.Publish(ctx, pass, r.res.Salt)
	if err != nil {
		return r.fail(err)
	}
	r.res.Published = out
	r.enter(Published)
	return r.done()
}

// recoverSnapshot loads the salt, derives the key, then decrypts and validates the encrypted artifact.
func (w *Workflow) recoverSnapshot(r *run, pass gatecrypt.Password) (string, error) {
	salt, err := w.store.Load()
	if err != nil {
		return "", err
	}
	r.res.Salt = salt
	r.enter(SaltReady)

	key := w.deriver.Derive(pass, salt)
	r.enter(KeyDerived)

	data, err := os.ReadFile(w.paths.Encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to read encrypted artifact: %w", err)
	}
	plain, err := gatecrypt.Decrypt(gatecrypt.Artifact(data), key)
	if err != nil {
		return "", err
	}
	r.enter(Decrypted)

	if err := w.validator.Validate(plain); err != nil {
		return "", err
	}
	r.enter(Validated)
	return plain, nil
}
