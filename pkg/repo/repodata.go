package repo

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// OfficialGitURL is where the recipes of official packages live.
const OfficialGitURL = "https://gitlab.archlinux.org/archlinux/packaging/packages"

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// NewIndexService creates an IndexService
func NewIndexService(l hclog.Logger) *IndexService {
	is := IndexService{
		l:        l.Named("IndexService"),
		hClient:  &http.Client{Timeout: 2 * time.Minute},
		packages: make(map[string]*types.Package),
		repos:    make(map[string]string),
	}
	return &is
}

// LoadIndex retrieves the sync database of the named repository
// either via http or from a local file.
func (is *IndexService) LoadIndex(ctx context.Context, name, path string) error {
	var indexBytes []byte
	var err error

	switch {
	case strings.HasPrefix(path, "http"):
		indexBytes, err = is.fetchHTTP(ctx, path)
	case strings.HasPrefix(path, "file://"), strings.HasPrefix(path, "/"):
		indexBytes, err = is.fetchFile(path)
	default:
		err = errors.Errorf("unknown sync database scheme: %s", path)
		is.l.Error("Sync database location must be either file or http(s)", "path", path)
	}
	if err != nil {
		return err
	}

	pkgs, err := parseSyncDB(indexBytes)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", name)
	}

	is.mu.Lock()
	defer is.mu.Unlock()
	for _, p := range pkgs {
		if _, ok := is.packages[p.Base]; ok {
			// first repository wins, as with pacman
			continue
		}
		is.packages[p.Base] = p
		is.repos[p.Base] = name
	}
	is.l.Debug("Loaded sync database", "repo", name, "bases", len(pkgs))
	return nil
}

// PkgCount is a quick check of how many package bases this index
// knows about.
func (is *IndexService) PkgCount() int {
	is.mu.RLock()
	defer is.mu.RUnlock()
	return len(is.packages)
}

// GetPackage returns a single package base from the index along with
// the repository it was found in.
func (is *IndexService) GetPackage(base string) (types.Package, string, error) {
	is.mu.RLock()
	defer is.mu.RUnlock()
	pkg, ok := is.packages[base]
	if !ok {
		return types.Package{}, "", errors.Wrap(ErrNoSuchPackage, base)
	}
	return pkg.Clone(), is.repos[base], nil
}

// Info returns the package with its remote pointing at the official
// recipe repository.
func (is *IndexService) Info(base string) (types.Package, error) {
	p, _, err := is.GetPackage(base)
	if err != nil {
		return types.Package{}, err
	}
	p.Remote = &types.RemoteSource{
		Source: types.SourceRepository,
		GitURL: OfficialGitURL + "/" + base + ".git",
		WebURL: OfficialGitURL + "/" + base,
		Branch: "main",
	}
	return p, nil
}

func (is *IndexService) fetchHTTP(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := is.hClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (is *IndexService) fetchFile(path string) ([]byte, error) {
	return os.ReadFile(strings.TrimPrefix(path, "file://"))
}

// decompress sniffs the compression of a sync database.  Plain tar
// is passed through.
func decompress(b []byte) (io.ReadCloser, error) {
	switch {
	case bytes.HasPrefix(b, zstdMagic):
		d, err := zstd.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case bytes.HasPrefix(b, gzipMagic):
		return gzip.NewReader(bytes.NewReader(b))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// parseSyncDB walks the tar inside the compressed database and groups
// every desc entry by package base.
func parseSyncDB(indexBytes []byte) ([]*types.Package, error) {
	r, err := decompress(indexBytes)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	byBase := make(map[string]*types.Package)
	var order []string
	tarchive := tar.NewReader(r)
	for {
		header, err := tarchive.Next()
		switch err {
		case nil:
		case io.EOF:
			out := make([]*types.Package, len(order))
			for i, base := range order {
				out[i] = byBase[base]
			}
			return out, nil
		default:
			return nil, err
		}

		if path.Base(header.Name) != "desc" {
			continue
		}
		fields, err := parseDesc(tarchive)
		if err != nil {
			return nil, errors.Wrap(err, header.Name)
		}

		name := first(fields["NAME"])
		base := first(fields["BASE"])
		if base == "" {
			base = name
		}
		if name == "" {
			return nil, errors.Errorf("%s: no package name", header.Name)
		}

		p, ok := byBase[base]
		if !ok {
			p = &types.Package{
				Base:     base,
				Version:  first(fields["VERSION"]),
				Packages: make(map[string]types.PackageDescription),
			}
			byBase[base] = p
			order = append(order, base)
		}
		built, _ := strconv.ParseInt(first(fields["BUILDDATE"]), 10, 64)
		p.Packages[name] = types.PackageDescription{
			Depends:      fields["DEPENDS"],
			MakeDepends:  fields["MAKEDEPENDS"],
			CheckDepends: fields["CHECKDEPENDS"],
			OptDepends:   fields["OPTDEPENDS"],
			Provides:     fields["PROVIDES"],
			BuildDate:    built,
			Filename:     first(fields["FILENAME"]),
		}
	}
}

// parseDesc reads the %KEY% blocks of a desc file.  Each block runs
// until the next empty line.
func parseDesc(r io.Reader) (map[string][]string, error) {
	fields := make(map[string][]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	key := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			key = ""
		case key == "" && strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") && len(line) > 2:
			key = strings.Trim(line, "%")
			fields[key] = []string{}
		case key != "":
			fields[key] = append(fields[key], line)
		}
	}
	return fields, sc.Err()
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
