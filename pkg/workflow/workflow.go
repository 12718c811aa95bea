/*
Package workflow runs the encrypt-for-publish and decrypt-for-update cycles of a dashboard snapshot.

A snapshot lives as a plaintext JSON file only between a Decrypt run and the next Encrypt run.
Encrypt replaces it with an encrypted artifact and deletes the plaintext, optionally publishing the password gated page.
Decrypt restores the plaintext so the snapshot can be updated again.

Every run is single shot and expects exclusive access to the files it works on.
*/
package workflow

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/saylorsolutions/dashlock/pkg/saltstore"
	"github.com/sirupsen/logrus"
	"io"
)

// Paths locates the artifacts of a snapshot.
type Paths struct {
	Plaintext string
	Encrypted string
}

// Publisher publishes the password gated page. It's satisfied by *hostpatch.Publisher.
type Publisher interface {
	Publish(ctx context.Context, pass gatecrypt.Password, salt gatecrypt.Salt) (string, error)
}

// Mode selects how far an Encrypt run goes.
type Mode int

const (
	// ModeEncrypt only encrypts the snapshot.
	ModeEncrypt Mode = iota
	// ModePublish also publishes the password gated page.
	ModePublish
)

// Result describes a workflow run.
type Result struct {
	RunID       string
	State       State
	Salt        gatecrypt.Salt
	SaltCreated bool
	Plaintext   string
	Encrypted   string
	// Published is the path of the password gated page, if one was published.
	Published string
	// Skipped is set when a Decrypt run had nothing to decrypt.
	Skipped bool
}

type Workflow struct {
	store     saltstore.Store
	paths     Paths
	deriver   *gatecrypt.Deriver
	validator *Validator
	publisher Publisher
	log       logrus.FieldLogger
}

type Opt = func(*Workflow) error

// WithDeriver overrides the key Deriver.
func WithDeriver(d *gatecrypt.Deriver) Opt {
	return func(w *Workflow) error {
		if d == nil {
			return errors.New("nil deriver")
		}
		w.deriver = d
		return nil
	}
}

// WithValidator overrides the snapshot Validator used by Decrypt and Publish.
func WithValidator(v *Validator) Opt {
	return func(w *Workflow) error {
		if v == nil {
			return errors.New("nil validator")
		}
		w.validator = v
		return nil
	}
}

// WithPublisher enables ModePublish and Publish.
func WithPublisher(p Publisher) Opt {
	return func(w *Workflow) error {
		w.publisher = p
		return nil
	}
}

func WithLogger(log logrus.FieldLogger) Opt {
	return func(w *Workflow) error {
		if log != nil {
			w.log = log
		}
		return nil
	}
}

// New creates a Workflow for the snapshot at paths, using the salt in store.
func New(store saltstore.Store, paths Paths, opts ...Opt) (*Workflow, error) {
	if store == nil {
		return nil, errors.New("salt store is required")
	}
	if len(paths.Plaintext) == 0 || len(paths.Encrypted) == 0 {
		return nil, errors.New("plaintext and encrypted paths are required")
	}
	deriver, err := gatecrypt.NewDeriver()
	if err != nil {
		return nil, err
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	w := &Workflow{
		store:   store,
		paths:   paths,
		deriver: deriver,
		log:     discard,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.validator == nil {
		if w.validator, err = NewValidator(nil); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// run tracks the state of a single workflow invocation.
type run struct {
	res *Result
	log logrus.FieldLogger
}

func (w *Workflow) newRun(name string) *run {
	id := uuid.NewString()
	return &run{
		res: &Result{
			RunID:     id,
			State:     Idle,
			Plaintext: w.paths.Plaintext,
			Encrypted: w.paths.Encrypted,
		},
		log: w.log.WithFields(logrus.Fields{
			"run_id":   id,
			"workflow": name,
		}),
	}
}

func (r *run) enter(s State) {
	r.res.State = s
	r.log.WithField("state", s).Debug("State changed")
}

func (r *run) fail(err error) (*Result, error) {
	stepErr := &StepError{State: r.res.State, Err: err}
	r.res.State = Failed
	r.log.WithError(stepErr).Error("Workflow failed")
	return r.res, stepErr
}

func (r *run) done() (*Result, error) {
	r.enter(Done)
	return r.res, nil
}
