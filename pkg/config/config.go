package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultURL  = "https://repository"
	defaultFile = ".repositorytools.yaml"

	EnvURL        = "REPOSITORY_URL"
	EnvStagingURL = "STAGING_REPOSITORY_URL"
	EnvUser       = "REPOSITORY_USER"
	EnvPassword   = "REPOSITORY_PASSWORD"
)

// Config holds everything the repository client needs. It's resolved once, before the client is built.
type Config struct {
	URL string `yaml:"url"`
	// StagingURL is the host put into download URLs of staged artifacts.
	// Staging repositories aren't mirrored, so it may differ from URL.
	StagingURL string `yaml:"stagingUrl"`

	User     string `yaml:"user"`
	Password string `yaml:"password"`

	Insecure bool          `yaml:"insecure"`
	Timeout  time.Duration `yaml:"timeout"`

	// AutoDropAfterRelease is a pointer so that an explicit false isn't overridden by the default.
	AutoDropAfterRelease *bool `yaml:"autoDropAfterRelease"`
}

// DefaultPath returns ~/.repositorytools.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultFile)
}

// Load resolves each field with precedence explicit > environment > config file > default.
// A missing config file is not an error.
func Load(explicit Config, path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		URL:        first(explicit.URL, getenv(EnvURL), file.URL, DefaultURL),
		StagingURL: first(explicit.StagingURL, getenv(EnvStagingURL), file.StagingURL),
		User:       first(explicit.User, getenv(EnvUser), file.User),
		Password:   first(explicit.Password, getenv(EnvPassword), file.Password),
		Insecure:   explicit.Insecure || file.Insecure,
		Timeout:    explicit.Timeout,
	}
	if cfg.StagingURL == "" {
		cfg.StagingURL = cfg.URL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = file.Timeout
	}

	switch {
	case explicit.AutoDropAfterRelease != nil:
		cfg.AutoDropAfterRelease = explicit.AutoDropAfterRelease
	case file.AutoDropAfterRelease != nil:
		cfg.AutoDropAfterRelease = file.AutoDropAfterRelease
	default:
		autoDrop := true
		cfg.AutoDropAfterRelease = &autoDrop
	}

	switch {
	case cfg.User != "" && cfg.Password == "":
		slog.Error("Repository password not specified. Please specify repository password in environment variable " + EnvPassword)
	case cfg.User == "" && cfg.Password != "":
		slog.Warn("Repository password is ignored without a user")
		cfg.Password = ""
	}
	return cfg, nil
}

// AutoDrop returns AutoDropAfterRelease, true when unset.
func (c Config) AutoDrop() bool {
	return c.AutoDropAfterRelease == nil || *c.AutoDropAfterRelease
}

func readFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	} else if err != nil {
		return Config{}, xerrors.Errorf("unable to read config file %s: %w", path, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, xerrors.Errorf("unable to decode config file %s: %w", path, err)
	}
	slog.Debug("Config file loaded", slog.String("path", path))
	return cfg, nil
}

func first(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
