package hostpatch

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/internal/fsutil"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGeneratorTimeout = 2 * time.Minute
	PasswordEnvVar          = "STATICRYPT_PASSWORD"
	maxStderr               = 4 * 1024
	waitDelay               = time.Second
)

var (
	ErrExternalToolFailed = errors.New("password gate generation failed")
)

// Template holds the text and colors of the generated password gate.
// Empty values use the generator's defaults.
type Template struct {
	Title          string `yaml:"title"`
	Instructions   string `yaml:"instructions"`
	Button         string `yaml:"button"`
	Placeholder    string `yaml:"placeholder"`
	RememberLabel  string `yaml:"remember_label"`
	ColorPrimary   string `yaml:"color_primary"`
	ColorSecondary string `yaml:"color_secondary"`
	// RememberDays sets how long the gate keeps the key, 0 leaves the generator default.
	RememberDays int `yaml:"remember_days"`
}

// Request describes a single password gate generation.
type Request struct {
	Input string
	// OutputDir receives the generated document, replacing any file of the same name.
	OutputDir  string
	ConfigPath string
	Password   gatecrypt.Password
	Salt       gatecrypt.Salt
	Template   Template
}

// Generator wraps a document in a password gate and returns the path of the generated document.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var _ Generator = (*StatiCrypt)(nil)

// StatiCrypt runs the StatiCrypt CLI.
// The password is passed in the PasswordEnvVar environment variable so it never shows up in a process listing.
type StatiCrypt struct {
	// Command is the program and leading arguments, like ["npx", "staticrypt"].
	Command []string
	Timeout time.Duration
}

func NewStatiCrypt(command ...string) *StatiCrypt {
	if len(command) == 0 {
		command = []string{"npx", "staticrypt"}
	}
	return &StatiCrypt{
		Command: command,
		Timeout: DefaultGeneratorTimeout,
	}
}

func (s *StatiCrypt) args(req Request) []string {
	args := append([]string{}, s.Command[1:]...)
	args = append(args,
		req.Input,
		"--directory", req.OutputDir,
		"--salt", string(req.Salt),
		"--short",
	)
	if len(req.ConfigPath) > 0 {
		args = append(args, "--config", req.ConfigPath)
	}
	if req.Template.RememberDays > 0 {
		args = append(args, "--remember", strconv.Itoa(req.Template.RememberDays))
	}
	for _, opt := range []struct {
		flag, val string
	}{
		{"--template-title", req.Template.Title},
		{"--template-instructions", req.Template.Instructions},
		{"--template-button", req.Template.Button},
		{"--template-placeholder", req.Template.Placeholder},
		{"--template-remember", req.Template.RememberLabel},
		{"--template-color-primary", req.Template.ColorPrimary},
		{"--template-color-secondary", req.Template.ColorSecondary},
	} {
		if len(opt.val) > 0 {
			args = append(args, opt.flag, opt.val)
		}
	}
	return args
}

func (s *StatiCrypt) Generate(ctx context.Context, req Request) (string, error) {
	if len(s.Command) == 0 {
		return "", fmt.Errorf("%w: no generator command configured", ErrExternalToolFailed)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultGeneratorTimeout
	}
	out := filepath.Join(req.OutputDir, filepath.Base(req.Input))
	if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: removing previous output: %v", ErrExternalToolFailed, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, s.Command[0], s.args(req)...)
	cmd.Env = append(os.Environ(), PasswordEnvVar+"="+string(req.Password))
	cmd.Stdout = io.Discard
	stderr := &tailWriter{limit: maxStderr}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s timed out after %s", ErrExternalToolFailed, s.Command[0], timeout)
		}
		return "", fmt.Errorf("%w: %s: %v: %s", ErrExternalToolFailed, s.Command[0], err, strings.TrimSpace(stderr.String()))
	}

	ok, err := fsutil.Exists(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalToolFailed, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: expected output '%s' was not created", ErrExternalToolFailed, out)
	}
	return out, nil
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	buf   []byte
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return string(w.buf)
}
