package main

import (
	"context"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/the-maldridge/arepo/pkg/http"
	"github.com/the-maldridge/arepo/pkg/manager"
)

func cmdServe(ctx context.Context, a *app, args []string) (int, error) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	bind := fs.String("bind", a.cfg.HTTPBind, "address to listen on")
	interval := fs.Duration("update-interval", 0, "run an update this often, 0 disables")
	if done, code, err := parseCommand(fs, args); done {
		return code, err
	}
	if err := requireArchs(a); err != nil {
		return 2, err
	}

	srv, err := http.New(a.l)
	if err != nil {
		return 1, err
	}

	managers := make(map[string]*manager.Manager, len(a.archs))
	defer func() {
		for _, m := range managers {
			m.Close()
		}
	}()
	for _, arch := range a.archs {
		m, err := a.manager(ctx, arch)
		if err != nil {
			return 1, err
		}
		managers[arch] = m
		srv.Mount("/"+arch+"/status", m.Registry().HTTPEntry())
		srv.Mount("/"+arch+"/builds", m.Scheduler().HTTPEntry())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, *bind) })
	if *interval > 0 {
		g.Go(func() error {
			periodicUpdate(ctx, a, managers, *interval)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 1, err
	}
	return 0, nil
}

// periodicUpdate runs a full update of every architecture on each
// tick until ctx is cancelled.  Failures are logged and retried on the
// next tick.
func periodicUpdate(ctx context.Context, a *app, managers map[string]*manager.Manager, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		a.l.Info("Starting scheduled update")
		manager.RunArchitectures(ctx, a.l, a.archs, a.cfg.ArchWorkers, func(ctx context.Context, arch string) error {
			res, err := managers[arch].Update(ctx, manager.UpdateOptions{})
			if res != nil && !res.IsEmpty() {
				a.l.Info("Scheduled update finished", "arch", arch,
					"built", len(res.Success()), "failed", len(res.Failed()))
			}
			return err
		})
	}
}
