package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/the-maldridge/arepo/pkg/registry"
	"github.com/the-maldridge/arepo/pkg/types"
)

func cmdStatus(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	remote := fs.String("remote", "", "status API of a running server, e.g. http://host:8080/x86_64/status")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	only := fs.String("status", "", "only show packages with this status")
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	var filter types.StatusEnum
	if *only != "" {
		st, err := types.ParseStatus(*only)
		if err != nil {
			return 2, err
		}
		filter = st
	}

	var entries []registry.Entry
	var self types.BuildStatus
	if *remote != "" {
		c := registry.NewClient(a.l, *remote)
		var err error
		if entries, err = c.List(ctx); err != nil {
			return 1, err
		}
		if self, err = c.Self(ctx); err != nil {
			return 1, err
		}
	} else {
		arch, err := singleArch(a)
		if err != nil {
			return 2, err
		}
		m, err := a.manager(ctx, arch)
		if err != nil {
			return 1, err
		}
		defer m.Close()
		entries = m.Registry().List()
		self = m.Registry().Self()
	}

	entries = selectEntries(entries, fs.Args(), filter)
	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return 0, enc.Encode(struct {
			Self     types.BuildStatus
			Packages []registry.Entry
		}{self, entries})
	}
	printEntries(a.out, self, entries)
	return 0, nil
}

// selectEntries keeps the requested bases and statuses, sorted by
// base.
func selectEntries(entries []registry.Entry, bases []string, st types.StatusEnum) []registry.Entry {
	want := make(map[string]bool, len(bases))
	for _, b := range bases {
		want[b] = true
	}
	var out []registry.Entry
	for _, e := range entries {
		if len(want) > 0 && !want[e.Package.Base] {
			continue
		}
		if st != "" && e.Status.Status != st {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package.Base < out[j].Package.Base })
	return out
}

func printEntries(w io.Writer, self types.BuildStatus, entries []registry.Entry) {
	fmt.Fprintf(w, "service: %s\n", self)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BASE\tVERSION\tSTATUS\tSINCE")
	for _, e := range entries {
		since := "-"
		if e.Status.Timestamp > 0 {
			since = time.Unix(e.Status.Timestamp, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Package.Base, e.Package.Version, e.Status.Status, since)
	}
	tw.Flush()
}

func cmdStatusUpdate(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("status-update", pflag.ContinueOnError)
	remote := fs.String("remote", "", "status API of a running server")
	status := fs.StringP("status", "s", string(types.StatusSuccess), "new status")
	remove := fs.Bool("remove", false, "drop the packages from the registry instead")
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	st, err := types.ParseStatus(*status)
	if err != nil {
		return 2, err
	}
	bases := fs.Args()
	if *remove && len(bases) == 0 {
		return 2, errors.New("no packages given")
	}

	var w statusWriter
	if *remote != "" {
		w = remoteStatus{ctx: ctx, c: registry.NewClient(a.l, *remote)}
	} else {
		arch, err := singleArch(a)
		if err != nil {
			return 2, err
		}
		m, err := a.manager(ctx, arch)
		if err != nil {
			return 1, err
		}
		defer m.Close()
		w = localStatus{m.Registry()}
	}

	switch {
	case len(bases) == 0:
		err = w.SetSelf(st)
	case *remove:
		for _, b := range bases {
			if err = w.Remove(b); err != nil {
				break
			}
		}
	default:
		for _, b := range bases {
			if err = w.Update(b, st); err != nil {
				break
			}
		}
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

// statusWriter covers the writes status-update makes, locally or
// through a server.
type statusWriter interface {
	SetSelf(types.StatusEnum) error
	Update(string, types.StatusEnum) error
	Remove(string) error
}

type localStatus struct {
	r *registry.Registry
}

func (s localStatus) SetSelf(st types.StatusEnum) error { return s.r.SetSelf(st) }
func (s localStatus) Update(base string, st types.StatusEnum) error { return s.r.Update(base, st) }
func (s localStatus) Remove(base string) error { return s.r.Remove(base) }

type remoteStatus struct {
	ctx context.Context
	c   *registry.Client
}

func (s remoteStatus) SetSelf(st types.StatusEnum) error { return s.c.SetSelf(s.ctx, st) }
func (s remoteStatus) Update(base string, st types.StatusEnum) error {
	return s.c.Update(s.ctx, base, st)
}
func (s remoteStatus) Remove(base string) error { return s.c.Remove(s.ctx, base) }
