package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/cmd/internal"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/saylorsolutions/dashlock/pkg/hostpatch"
	"github.com/saylorsolutions/dashlock/pkg/saltstore"
	"github.com/saylorsolutions/dashlock/pkg/workflow"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"os"
)

var (
	version = "dev"
)

type options struct {
	configFile string
	publish    bool
	prompt     bool
	help       bool
	logLevel   string
	plaintext  string
	encrypted  string
	saltConfig string
}

func main() {
	var opts options
	flags := flag.NewFlagSet("dashlock", flag.ContinueOnError)
	flags.StringVarP(&opts.configFile, "config", "c", defaultConfigFile, "YAML settings file. It's fine for the default file to be missing.")
	flags.BoolVarP(&opts.publish, "publish", "P", false, "After encrypting, also publish the password gated page.")
	flags.BoolVar(&opts.prompt, "prompt", false, "Read the password from the terminal if the password environment variable is empty.")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides the settings file.")
	flags.StringVar(&opts.plaintext, "plaintext", "", "Path of the plaintext JSON snapshot.")
	flags.StringVar(&opts.encrypted, "encrypted", "", "Path of the encrypted artifact.")
	flags.StringVar(&opts.saltConfig, "salt-config", "", "Path of the salt config shared with StatiCrypt.")
	flags.BoolVarP(&opts.help, "help", "h", false, "Prints this usage information.")
	flags.Usage = func() {
		fmt.Printf(`
dashlock encrypts a dashboard's JSON snapshot for a static site protected by a StatiCrypt password gate, and decrypts it again for the next update.

USAGE:  dashlock [FLAGS] COMMAND

COMMANDS:
    encrypt    Encrypt the plaintext snapshot and delete it. Use -P to publish the gated page as well.
    decrypt    Restore the plaintext snapshot from the encrypted artifact. Does nothing if there's no artifact yet.
    publish    Publish the gated page for the existing encrypted artifact.

FLAGS:
%s
PASSWORD:
    The password is read from the environment variable named by password_env in the settings file (default %s).
    It's never written to disk or logged.

EXIT CODES:
    0 success, 1 other failure, 2 missing password, 3 missing or invalid input, 4 missing salt config,
    5 malformed artifact, 6 decryption failed, 7 StatiCrypt failed, 8 patch point not found.

VERSION: %s
`, flags.FlagUsages(), defaultPasswordEnv, version)
	}
	if len(os.Args) == 1 {
		flags.Usage()
		return
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		flags.Usage()
		internal.Fatal("Error parsing flags: %v", err)
	}
	if opts.help {
		flags.Usage()
		return
	}
	if flags.NArg() != 1 {
		flags.Usage()
		internal.Fatal("Expected exactly one COMMAND")
	}

	cfg, err := loadConfig(opts.configFile, flags.Changed("config"), os.Getenv)
	if err != nil {
		internal.Fatal("Failed to load configuration: %v", err)
	}
	opts.apply(&cfg)

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		internal.Fatal("Invalid log level: %v", err)
	}

	if err := run(context.Background(), flags.Arg(0), cfg, opts, log); err != nil {
		internal.FatalErr(err)
	}
}

func (o options) apply(cfg *Config) {
	if len(o.logLevel) > 0 {
		cfg.LogLevel = o.logLevel
	}
	if len(o.plaintext) > 0 {
		cfg.Plaintext = o.plaintext
	}
	if len(o.encrypted) > 0 {
		cfg.Encrypted = o.encrypted
	}
	if len(o.saltConfig) > 0 {
		cfg.SaltConfig = o.saltConfig
	}
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

func run(ctx context.Context, command string, cfg Config, opts options, log *logrus.Logger) error {
	switch command {
	case "encrypt", "decrypt", "publish":
	default:
		return fmt.Errorf("unknown command '%s'", command)
	}
	wf, err := buildWorkflow(cfg, command == "publish" || opts.publish, log)
	if err != nil {
		return err
	}
	pass, err := readPassword(cfg.PasswordEnv, opts.prompt)
	if err != nil {
		return err
	}

	var res *workflow.Result
	switch command {
	case "encrypt":
		mode := workflow.ModeEncrypt
		if opts.publish {
			mode = workflow.ModePublish
		}
		res, err = wf.Encrypt(ctx, pass, mode)
	case "decrypt":
		res, err = wf.Decrypt(pass)
	case "publish":
		res, err = wf.Publish(ctx, pass)
	}
	if err != nil {
		return err
	}
	report(command, res)
	return nil
}

func buildWorkflow(cfg Config, publish bool, log *logrus.Logger) (*workflow.Workflow, error) {
	wfOpts := []workflow.Opt{workflow.WithLogger(log)}

	if len(cfg.Schema) > 0 {
		schema, err := os.ReadFile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot schema: %w", err)
		}
		v, err := workflow.NewValidator(schema)
		if err != nil {
			return nil, err
		}
		wfOpts = append(wfOpts, workflow.WithValidator(v))
	}

	if publish {
		pub, err := newPublisher(cfg, log)
		if err != nil {
			return nil, err
		}
		wfOpts = append(wfOpts, workflow.WithPublisher(pub))
	}

	return workflow.New(
		saltstore.NewFileStore(cfg.SaltConfig),
		workflow.Paths{Plaintext: cfg.Plaintext, Encrypted: cfg.Encrypted},
		wfOpts...,
	)
}

func newPublisher(cfg Config, log *logrus.Logger) (*hostpatch.Publisher, error) {
	pc := cfg.Publish
	ps, err := hostpatch.LookupPatchSet(pc.PatchSet)
	if err != nil {
		return nil, err
	}
	if len(pc.Generator) == 0 {
		return nil, errors.New("publish.generator must name the StatiCrypt command")
	}
	gen := hostpatch.NewStatiCrypt(pc.Generator...)
	gen.Timeout = pc.Timeout

	return &hostpatch.Publisher{
		HostDocument: pc.HostDocument,
		OutputDir:    pc.OutputDir,
		ConfigPath:   cfg.SaltConfig,
		Patch:        ps,
		Host: hostpatch.HostParams{
			ArtifactURL: pc.ArtifactURL,
			LoaderFunc:  pc.LoaderFunc,
			StorageKey:  pc.StorageKey,
		},
		Branding: hostpatch.Branding{
			Image: pc.BrandingImage,
			Alt:   pc.BrandingAlt,
		},
		Template:  pc.Template,
		Generator: gen,
		Log:       log,
	}, nil
}

// readPassword reads the password from the environment, falling back to the terminal if prompt is set.
// An empty result is left for the workflow to reject.
func readPassword(envVar string, prompt bool) (gatecrypt.Password, error) {
	if v := os.Getenv(envVar); v != "" {
		return gatecrypt.Password(v), nil
	}
	if !prompt {
		return "", nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: %s is empty and stdin is not a terminal", workflow.ErrMissingCredential, envVar)
	}
	_, _ = fmt.Fprint(os.Stderr, "Password: ")
	pass, err := term.ReadPassword(fd)
	internal.Echo("")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return gatecrypt.Password(pass), nil
}

func report(command string, res *workflow.Result) {
	switch {
	case res.Skipped:
		internal.Echo("No encrypted artifact at %s, nothing to decrypt", res.Encrypted)
	case command == "decrypt":
		internal.Echo("Decrypted %s to %s", res.Encrypted, res.Plaintext)
	case len(res.Published) > 0 && command == "publish":
		internal.Echo("Published %s", res.Published)
	case len(res.Published) > 0:
		internal.Echo("Encrypted %s to %s and published %s", res.Plaintext, res.Encrypted, res.Published)
	default:
		internal.Echo("Encrypted %s to %s", res.Plaintext, res.Encrypted)
	}
}
