package config

import (
	"encoding/json"
	"time"
)

// Config represents the complete application configuration that
// arepo supports.
type Config struct {
	// Root is the directory holding caches, sources, packages and
	// the published repository.
	Root string

	// Architectures to operate on.  When empty the architectures
	// that already have a repository below Root are used.
	Architectures []string

	// Storage names the registry backend: bitcask, sqlite or
	// memory.
	Storage string

	Builder      string
	BuildCommand []string
	NomadJob     string

	Concurrency int
	ArchWorkers int

	VCSFreshness Duration
	BumpRelease  bool
	IgnoreList   []string

	AURURL     string
	RepoDBURLs map[string]map[string]string
	Makepkg    string

	Triggers  []string
	GitRemote GitRemote

	DefaultPackager string
	Packagers       map[string]string

	HTTPBind string
	LogLevel string
}

// GitRemote is where the gitremote trigger pushes recipes to.
type GitRemote struct {
	URL         string
	Branch      string
	CommitUser  string
	CommitEmail string
}

// Duration reads a time.Duration from a string such as "24h".
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a duration string or a number of
// seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return err
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}
