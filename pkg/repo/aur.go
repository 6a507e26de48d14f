package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// DefaultAURURL is the public user repository.
const DefaultAURURL = "https://aur.archlinux.org"

// aurPackage is one result of the info RPC call.
type aurPackage struct {
	Name         string
	PackageBase  string
	Version      string
	Depends      []string
	MakeDepends  []string
	CheckDepends []string
	OptDepends   []string
	Provides     []string
	LastModified int64
}

type aurResponse struct {
	Type    string       `json:"type"`
	Error   string       `json:"error"`
	Results []aurPackage `json:"results"`
}

// NewAUR returns a client for the RPC interface at url.
func NewAUR(l hclog.Logger, url string) *AUR {
	if url == "" {
		url = DefaultAURURL
	}
	return &AUR{
		l:       l.Named("aur"),
		hClient: &http.Client{Timeout: 30 * time.Second},
		Url:     strings.TrimSuffix(url, "/"),
	}
}

// Info returns the package base together with every artifact that the
// RPC reports for it.
func (a *AUR) Info(ctx context.Context, base string) (types.Package, error) {
	q := url.Values{}
	q.Set("v", "5")
	q.Set("type", "info")
	q.Add("arg[]", base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Url+"/rpc/?"+q.Encode(), nil)
	if err != nil {
		return types.Package{}, err
	}
	resp, err := a.hClient.Do(req)
	if err != nil {
		return types.Package{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Package{}, errors.Errorf("aur rpc: %s", resp.Status)
	}

	var body aurResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Package{}, errors.Wrap(err, "decoding aur rpc response")
	}
	if body.Type == "error" {
		return types.Package{}, errors.Errorf("aur rpc: %s", body.Error)
	}

	p := types.Package{
		Base:     base,
		Packages: make(map[string]types.PackageDescription),
		Remote: &types.RemoteSource{
			Source: types.SourceAUR,
			GitURL: a.Url + "/" + base + ".git",
			WebURL: a.Url + "/packages/" + base,
			Branch: "master",
		},
	}
	for _, r := range body.Results {
		if r.PackageBase != base {
			continue
		}
		p.Version = r.Version
		p.Packages[r.Name] = types.PackageDescription{
			Depends:      r.Depends,
			MakeDepends:  r.MakeDepends,
			CheckDepends: r.CheckDepends,
			OptDepends:   r.OptDepends,
			Provides:     r.Provides,
		}
	}
	if len(p.Packages) == 0 {
		return types.Package{}, errors.Wrap(ErrNoSuchPackage, base)
	}
	a.l.Trace("AUR lookup", "base", base, "version", p.Version)
	return p, nil
}
