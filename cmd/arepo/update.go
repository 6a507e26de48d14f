package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/the-maldridge/arepo/pkg/detector"
	"github.com/the-maldridge/arepo/pkg/manager"
	"github.com/the-maldridge/arepo/pkg/types"
)

func cmdUpdate(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	var o manager.UpdateOptions
	fs.BoolVar(&o.DryRun, "dry-run", false, "only list the packages that would be built")
	fs.BoolVar(&o.NoRemote, "no-remote", false, "do not check upstream versions")
	fs.BoolVar(&o.NoLocal, "no-local", false, "do not check local recipes")
	fs.BoolVar(&o.NoManual, "no-manual", false, "do not build queued packages")
	fs.BoolVar(&o.NoVCS, "no-vcs", false, "do not check VCS packages")
	exitCode := fs.BoolP("exit-code", "e", false, "exit 1 when there was nothing to do")
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	o.Filter = fs.Args()
	if err := requireArchs(a); err != nil {
		return 2, err
	}

	var mu sync.Mutex
	total := new(types.Result)
	planned := 0
	results := manager.RunArchitectures(ctx, a.l, a.archs, a.cfg.ArchWorkers, func(ctx context.Context, arch string) error {
		m, err := a.manager(ctx, arch)
		if err != nil {
			return err
		}
		defer m.Close()

		if o.DryRun {
			candidates, err := m.Plan(ctx, o.Options)
			mu.Lock()
			defer mu.Unlock()
			for _, p := range candidates {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", arch, p.Base, p.Version)
			}
			planned += len(candidates)
			return err
		}

		res, err := m.Update(ctx, o)
		if res != nil {
			mu.Lock()
			total.Merge(res)
			mu.Unlock()
		}
		return err
	})

	if failed := manager.Failed(results); len(failed) > 0 {
		printResult(a.out, total)
		return 1, errors.Errorf("update failed for %v", failed)
	}
	if o.DryRun {
		if *exitCode && planned == 0 {
			return 1, nil
		}
		return 0, nil
	}
	printResult(a.out, total)
	return manager.ExitCode(total, *exitCode), nil
}

func printResult(w io.Writer, r *types.Result) {
	for _, p := range r.Success() {
		fmt.Fprintf(w, "built\t%s\t%s\n", p.Base, p.Version)
	}
	for _, f := range r.Failed() {
		fmt.Fprintf(w, "failed\t%s\t%v\n", f.Base, f.Err)
	}
	for _, base := range r.Removed() {
		fmt.Fprintf(w, "removed\t%s\n", base)
	}
}

func cmdAdd(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
	src := fs.StringP("source", "s", string(types.SourceAuto), "where to look the packages up: auto, aur, repository or local")
	now := fs.BoolP("now", "n", false, "run an update for the added packages right away")
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	if fs.NArg() == 0 {
		return 2, errors.New("no packages given")
	}
	source, err := parseSource(*src)
	if err != nil {
		return 2, err
	}
	if err := requireArchs(a); err != nil {
		return 2, err
	}

	var mu sync.Mutex
	total := new(types.Result)
	results := manager.RunArchitectures(ctx, a.l, a.archs, a.cfg.ArchWorkers, func(ctx context.Context, arch string) error {
		m, err := a.manager(ctx, arch)
		if err != nil {
			return err
		}
		defer m.Close()

		var bases []string
		for _, name := range fs.Args() {
			p, err := m.Add(ctx, name, source)
			if err != nil {
				return errors.Wrap(err, name)
			}
			bases = append(bases, p.Base)
		}
		if !*now {
			return nil
		}
		res, err := m.Update(ctx, manager.UpdateOptions{
			Options: detector.Options{Filter: bases},
		})
		if res != nil {
			mu.Lock()
			total.Merge(res)
			mu.Unlock()
		}
		return err
	})
	printResult(a.out, total)
	if failed := manager.Failed(results); len(failed) > 0 {
		return 1, errors.Errorf("add failed for %v", failed)
	}
	return manager.ExitCode(total, false), nil
}

func cmdRemove(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("remove", pflag.ContinueOnError)
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	if fs.NArg() == 0 {
		return 2, errors.New("no packages given")
	}
	if err := requireArchs(a); err != nil {
		return 2, err
	}

	var mu sync.Mutex
	total := new(types.Result)
	results := manager.RunArchitectures(ctx, a.l, a.archs, a.cfg.ArchWorkers, func(ctx context.Context, arch string) error {
		m, err := a.manager(ctx, arch)
		if err != nil {
			return err
		}
		defer m.Close()

		res, err := m.Remove(ctx, fs.Args())
		if res != nil {
			mu.Lock()
			total.Merge(res)
			mu.Unlock()
		}
		return err
	})
	printResult(a.out, total)
	if failed := manager.Failed(results); len(failed) > 0 {
		return 1, errors.Errorf("remove failed for %v", failed)
	}
	return 0, nil
}

func parseSource(s string) (types.PackageSource, error) {
	switch src := types.PackageSource(s); src {
	case types.SourceAuto, types.SourceAUR, types.SourceRepository, types.SourceLocal:
		return src, nil
	default:
		return "", errors.Errorf("unknown package source %q", s)
	}
}
