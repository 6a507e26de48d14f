package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// Client talks to a registry served by another arepo process.
type Client struct {
	l       hclog.Logger
	hClient *http.Client

	// Url is the base address the registry is mounted at, for
	// example http://localhost:8080/api/x86_64.
	Url string
}

// NewClient creates a new API client.
func NewClient(l hclog.Logger, url string) *Client {
	x := Client{
		l:       l.Named("client"),
		hClient: &http.Client{Timeout: 30 * time.Second},
		Url:     strings.TrimSuffix(url, "/"),
	}
	return &x
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	if c.Url == "" {
		return errors.New("registry url is not set")
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Url+endpoint, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hClient.Do(req)
	if err != nil {
		c.l.Warn("Unable to reach registry", "endpoint", endpoint, "method", method, "error", err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrap(ErrUnknownPackage, endpoint)
	case resp.StatusCode >= 300:
		var e struct{ Error string }
		json.NewDecoder(resp.Body).Decode(&e)
		return errors.Errorf("registry returned %d: %s", resp.StatusCode, e.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// List fetches every entry in the remote registry.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	if err := c.do(ctx, http.MethodGet, "/packages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single entry.
func (c *Client) Get(ctx context.Context, base string) (Entry, error) {
	var out Entry
	err := c.do(ctx, http.MethodGet, "/packages/"+base, nil, &out)
	return out, err
}

// Add sends a package snapshot with its status.
func (c *Client) Add(ctx context.Context, pkg types.Package, s types.StatusEnum) error {
	return c.do(ctx, http.MethodPost, "/packages/"+pkg.Base, statusUpdate{Status: s, Package: &pkg}, nil)
}

// Update changes the status of a package the remote already knows.
func (c *Client) Update(ctx context.Context, base string, s types.StatusEnum) error {
	return c.do(ctx, http.MethodPost, "/packages/"+base, statusUpdate{Status: s}, nil)
}

// Remove drops a package from the remote registry.
func (c *Client) Remove(ctx context.Context, base string) error {
	return c.do(ctx, http.MethodDelete, "/packages/"+base, nil, nil)
}

// Self fetches the status of the remote process.
func (c *Client) Self(ctx context.Context) (types.BuildStatus, error) {
	var out types.BuildStatus
	err := c.do(ctx, http.MethodGet, "/self", nil, &out)
	return out, err
}

// SetSelf changes the status of the remote process.
func (c *Client) SetSelf(ctx context.Context, s types.StatusEnum) error {
	return c.do(ctx, http.MethodPost, "/self", statusUpdate{Status: s}, nil)
}
