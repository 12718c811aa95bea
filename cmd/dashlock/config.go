package main

import (
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/pkg/hostpatch"
	"gopkg.in/yaml.v3"
	"io/fs"
	"os"
	"time"
)

const (
	defaultConfigFile  = "dashlock.yaml"
	defaultPasswordEnv = "DASHLOCK_PASSWORD"
)

// Config holds all dashlock settings.
// Priority: flags > env vars > settings file > defaults.
type Config struct {
	Plaintext   string        `yaml:"plaintext"`
	Encrypted   string        `yaml:"encrypted"`
	SaltConfig  string        `yaml:"salt_config"`
	PasswordEnv string        `yaml:"password_env"`
	Schema      string        `yaml:"schema"`
	LogLevel    string        `yaml:"log_level"`
	Publish     PublishConfig `yaml:"publish"`
}

type PublishConfig struct {
	HostDocument  string             `yaml:"host_document"`
	OutputDir     string             `yaml:"output_dir"`
	ArtifactURL   string             `yaml:"artifact_url"`
	LoaderFunc    string             `yaml:"loader_func"`
	StorageKey    string             `yaml:"storage_key"`
	PatchSet      string             `yaml:"patch_set"`
	Generator     []string           `yaml:"generator"`
	Timeout       time.Duration      `yaml:"timeout"`
	BrandingImage string             `yaml:"branding_image"`
	BrandingAlt   string             `yaml:"branding_alt"`
	Template      hostpatch.Template `yaml:"template"`
}

func defaultConfig() Config {
	return Config{
		Plaintext:   "data/data.json",
		Encrypted:   "data/data.enc",
		SaltConfig:  ".staticrypt.json",
		PasswordEnv: defaultPasswordEnv,
		LogLevel:    "info",
		Publish: PublishConfig{
			HostDocument: "index.html",
			OutputDir:    "encrypted",
			ArtifactURL:  "data/data.enc",
			LoaderFunc:   hostpatch.DefaultLoaderFunc,
			StorageKey:   hostpatch.DefaultStorageKey,
			PatchSet:     hostpatch.StatiCrypt3.Version,
			Generator:    []string{"npx", "staticrypt"},
			Timeout:      hostpatch.DefaultGeneratorTimeout,
		},
	}
}

// loadConfig layers the settings file and environment over the defaults.
// A missing settings file is only an error if it was asked for explicitly.
func loadConfig(path string, explicit bool, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse settings file '%s': %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read settings file: %w", err)
	}

	for env, field := range map[string]*string{
		"DASHLOCK_PLAINTEXT":     &cfg.Plaintext,
		"DASHLOCK_ENCRYPTED":     &cfg.Encrypted,
		"DASHLOCK_SALT_CONFIG":   &cfg.SaltConfig,
		"DASHLOCK_SCHEMA":        &cfg.Schema,
		"DASHLOCK_LOG_LEVEL":     &cfg.LogLevel,
		"DASHLOCK_HOST_DOCUMENT": &cfg.Publish.HostDocument,
		"DASHLOCK_OUTPUT_DIR":    &cfg.Publish.OutputDir,
		"DASHLOCK_ARTIFACT_URL":  &cfg.Publish.ArtifactURL,
	} {
		if v := getenv(env); v != "" {
			*field = v
		}
	}
	if len(cfg.PasswordEnv) == 0 {
		cfg.PasswordEnv = defaultPasswordEnv
	}
	return cfg, nil
}
