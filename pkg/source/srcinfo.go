package source

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// srcinfoSection holds the keys of one pkgbase or pkgname block.  A
// key that is present with no values clears the inherited value.
type srcinfoSection map[string][]string

// ParseSRCINFO reads the output of makepkg --printsrcinfo.  Values
// suffixed with _<arch> are merged in for the given architecture.
func ParseSRCINFO(r io.Reader, arch string) (types.Package, error) {
	var (
		base     srcinfoSection
		names    []string
		sections = make(map[string]srcinfoSection)
		current  srcinfoSection
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 0; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return types.Package{}, errors.Errorf("srcinfo line %d: no separator", line+1)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "pkgbase":
			if base != nil {
				return types.Package{}, errors.Errorf("srcinfo line %d: duplicate pkgbase", line+1)
			}
			base = srcinfoSection{"pkgbase": {value}}
			current = base
			continue
		case "pkgname":
			if base == nil {
				return types.Package{}, errors.Errorf("srcinfo line %d: pkgname before pkgbase", line+1)
			}
			current = srcinfoSection{}
			sections[value] = current
			names = append(names, value)
			continue
		}
		if current == nil {
			return types.Package{}, errors.Errorf("srcinfo line %d: %s outside of a section", line+1, key)
		}
		if value == "" {
			current[key] = []string{}
			continue
		}
		current[key] = append(current[key], value)
	}
	if err := sc.Err(); err != nil {
		return types.Package{}, err
	}
	if base == nil {
		return types.Package{}, errors.New("srcinfo has no pkgbase")
	}
	if len(base["pkgver"]) == 0 || len(base["pkgrel"]) == 0 {
		return types.Package{}, errors.New("srcinfo has no version")
	}

	p := types.Package{
		Base:     base["pkgbase"][0],
		Version:  types.FullVersion(first(base["epoch"]), base["pkgver"][0], base["pkgrel"][0]),
		Packages: make(map[string]types.PackageDescription, len(names)),
	}
	for _, name := range names {
		get := func(key string) []string { return base.merged(sections[name], key, arch) }
		p.Packages[name] = types.PackageDescription{
			Depends:      get("depends"),
			MakeDepends:  get("makedepends"),
			CheckDepends: get("checkdepends"),
			OptDepends:   get("optdepends"),
			Provides:     get("provides"),
		}
	}
	return p, nil
}

// merged returns key from the package block if it sets it, from the
// base block otherwise, plus the architecture specific variant.
func (base srcinfoSection) merged(pkg srcinfoSection, key, arch string) []string {
	var out []string
	for _, k := range []string{key, key + "_" + arch} {
		v, ok := pkg[k]
		if !ok {
			v = base[k]
		}
		out = append(out, v...)
	}
	return out
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Dependencies returns the sorted, constraint free build and runtime
// dependencies of every artifact of p.
func Dependencies(p types.Package) []string {
	seen := make(map[string]struct{})
	for _, desc := range p.Packages {
		for _, list := range [][]string{desc.Depends, desc.MakeDepends, desc.CheckDepends} {
			for _, dep := range list {
				seen[types.StripConstraint(dep)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}
