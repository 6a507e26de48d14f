package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
)

// NewConfig returns a config object with default structures
// initialized.  The config can be loaded from other sources to
// override the defaults.
func NewConfig() *Config {
	return &Config{
		Root:         "/var/lib/arepo",
		Storage:      "bitcask",
		Builder:      "local",
		NomadJob:     "arepo-build",
		Concurrency:  1,
		ArchWorkers:  1,
		VCSFreshness: Duration{24 * time.Hour},
		AURURL:       "https://aur.archlinux.org",
		RepoDBURLs:   map[string]map[string]string{},
		Makepkg:      "makepkg",
		Triggers:     []string{"report"},
		GitRemote: GitRemote{
			Branch: "master",
		},
		DefaultPackager: "arepo <arepo@localhost>",
		Packagers:       map[string]string{},
		HTTPBind:        ":8080",
		LogLevel:        "INFO",
	}
}

// LoadFromFile does as the name suggests, and loads the config from a
// file.  Comments and trailing commas are permitted.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return c.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("root must be set")
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.ArchWorkers < 1 {
		return errors.Errorf("arch workers must be at least 1, got %d", c.ArchWorkers)
	}
	if c.VCSFreshness.Duration < 0 {
		return errors.New("vcs freshness must not be negative")
	}
	return nil
}
