package hostpatch

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/internal/fsutil"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/sirupsen/logrus"
	"io"
	"os"
	"path/filepath"
)

// Publisher patches the host document, runs the Generator, and post-processes its output.
// Patching and generation happen in a private staging directory. The host document is never modified,
// and a page already in OutputDir is left alone unless the whole run succeeds.
type Publisher struct {
	HostDocument string
	OutputDir    string
	// ConfigPath is the salt config passed to the generator, so it uses the same salt.
	ConfigPath string
	Patch      PatchSet
	Host       HostParams
	Branding   Branding
	Template   Template
	Generator  Generator
	Log        logrus.FieldLogger
}

func (p *Publisher) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (p *Publisher) validate() error {
	switch {
	case len(p.HostDocument) == 0:
		return errors.New("host document is required")
	case len(p.OutputDir) == 0:
		return errors.New("output directory is required")
	case p.Generator == nil:
		return errors.New("generator is required")
	case len(p.Patch.Version) == 0:
		return errors.New("patch set is required")
	}
	return nil
}

// Publish generates the password gated page and returns its path.
func (p *Publisher) Publish(ctx context.Context, pass gatecrypt.Password, salt gatecrypt.Salt) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	log := p.logger().WithFields(logrus.Fields{
		"host_document": p.HostDocument,
		"patch_set":     p.Patch.Version,
	})

	doc, err := os.ReadFile(p.HostDocument)
	if err != nil {
		return "", fmt.Errorf("failed to read host document: %w", err)
	}
	host := p.Host
	host.Salt = salt
	patched, err := p.Patch.PatchHost(string(doc), host)
	if err != nil {
		return "", err
	}
	log.Debug("Patched host document")

	stage, err := os.MkdirTemp("", "dashlock-stage-*")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.RemoveAll(stage)
	}()
	staged := filepath.Join(stage, "in", filepath.Base(p.HostDocument))
	genDir := filepath.Join(stage, "out")
	for _, dir := range []string{filepath.Dir(staged), genDir} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(staged, []byte(patched), 0o600); err != nil {
		return "", err
	}

	generated, err := p.Generator.Generate(ctx, Request{
		Input:      staged,
		OutputDir:  genDir,
		ConfigPath: p.ConfigPath,
		Password:   pass,
		Salt:       salt,
		Template:   p.Template,
	})
	if err != nil {
		return "", err
	}
	log.WithField("generated", generated).Debug("Generated password gate")

	gated, err := os.ReadFile(generated)
	if err != nil {
		return "", fmt.Errorf("%w: reading output: %v", ErrExternalToolFailed, err)
	}
	final, err := p.Patch.PostProcess(string(gated), p.Branding)
	if err != nil {
		return "", err
	}

	// The previously published page is only replaced by a complete one.
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(p.OutputDir, filepath.Base(generated))
	if err := fsutil.WriteFileAtomic(out, []byte(final), 0o644); err != nil {
		return "", err
	}
	log.WithField("output", out).Info("Published password gated page")
	return out, nil
}
