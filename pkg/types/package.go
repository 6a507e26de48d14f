package types

import (
	"sort"
	"strings"
)

// PackageSource tags where the truth about a package comes from.
type PackageSource string

const (
	// SourceAuto lets the lookup decide based on what the package
	// looks like.
	SourceAuto PackageSource = "auto"
	// SourceAUR is the user repository.
	SourceAUR PackageSource = "aur"
	// SourceRepository is an official distribution repository.
	SourceRepository PackageSource = "repository"
	// SourceLocal is a manual submission living in a local
	// directory.
	SourceLocal PackageSource = "local"
	// SourceArchive is a pre-built package archive.
	SourceArchive PackageSource = "archive"
)

// vcsSuffixes are the base name suffixes that mark a package as being
// built from a live checkout.
var vcsSuffixes = []string{"-bzr", "-cvs", "-darcs", "-git", "-hg", "-svn"}

// RemoteSource carries everything needed to refresh a package from
// wherever it came from.
type RemoteSource struct {
	Source PackageSource `json:"source"`
	GitURL string        `json:"git_url,omitempty"`
	WebURL string        `json:"web_url,omitempty"`
	Path   string        `json:"path,omitempty"`
	Branch string        `json:"branch,omitempty"`

	// VCS forces the package to be treated as a live package
	// regardless of its name.
	VCS bool `json:"vcs,omitempty"`
}

// PackageDescription is the metadata of a single produced artifact.
type PackageDescription struct {
	Depends      []string `json:"depends,omitempty"`
	MakeDepends  []string `json:"make_depends,omitempty"`
	CheckDepends []string `json:"check_depends,omitempty"`
	OptDepends   []string `json:"opt_depends,omitempty"`
	Provides     []string `json:"provides,omitempty"`
	BuildDate    int64    `json:"build_date,omitempty"`
	Filename     string   `json:"filename,omitempty"`
}

// Package is a package base together with everything it produces.
type Package struct {
	Base     string                        `json:"base"`
	Version  string                        `json:"version"`
	Remote   *RemoteSource                 `json:"remote,omitempty"`
	Packages map[string]PackageDescription `json:"packages"`
}

// IsVCS reports whether the version of this package has to be
// recomputed from a live checkout.
func (p Package) IsVCS() bool {
	if p.Remote != nil && p.Remote.VCS {
		return true
	}
	for _, suffix := range vcsSuffixes {
		if strings.HasSuffix(p.Base, suffix) {
			return true
		}
	}
	return false
}

// IsOutdated compares the version of this package with the version
// that is actually available upstream.
func (p Package) IsOutdated(actual string) bool {
	return VerCmp(p.Version, actual) < 0
}

// Names returns the sorted names of every artifact built from this
// base.
func (p Package) Names() []string {
	names := make([]string, 0, len(p.Packages))
	for name := range p.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provides returns every name that a dependency could be satisfied
// with by this base: the artifact names and their virtual provides.
// Version constraints on provides are stripped.
func (p Package) Provides() map[string]struct{} {
	out := make(map[string]struct{}, len(p.Packages))
	for name, desc := range p.Packages {
		out[name] = struct{}{}
		for _, prov := range desc.Provides {
			out[StripConstraint(prov)] = struct{}{}
		}
	}
	return out
}

// BuildDate returns the newest build timestamp across all artifacts,
// zero if the package was never built.
func (p Package) BuildDate() int64 {
	var newest int64
	for _, desc := range p.Packages {
		if desc.BuildDate > newest {
			newest = desc.BuildDate
		}
	}
	return newest
}

// Clone returns a deep copy so that callers may hand the package to
// other goroutines without sharing the maps.
func (p Package) Clone() Package {
	c := p
	if p.Remote != nil {
		r := *p.Remote
		c.Remote = &r
	}
	c.Packages = make(map[string]PackageDescription, len(p.Packages))
	for name, desc := range p.Packages {
		c.Packages[name] = PackageDescription{
			Depends:      append([]string(nil), desc.Depends...),
			MakeDepends:  append([]string(nil), desc.MakeDepends...),
			CheckDepends: append([]string(nil), desc.CheckDepends...),
			OptDepends:   append([]string(nil), desc.OptDepends...),
			Provides:     append([]string(nil), desc.Provides...),
			BuildDate:    desc.BuildDate,
			Filename:     desc.Filename,
		}
	}
	return c
}

// StripConstraint removes a version constraint from a dependency
// string, "foo>=1.0" becomes "foo".
func StripConstraint(dep string) string {
	if i := strings.IndexAny(dep, "<>="); i >= 0 {
		return dep[:i]
	}
	return dep
}

// SortPackages orders a slice of packages by base name in place.
func SortPackages(pkgs []Package) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Base < pkgs[j].Base })
}
