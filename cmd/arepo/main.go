package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/the-maldridge/arepo/pkg/config"
	"github.com/the-maldridge/arepo/pkg/manager"
	"github.com/the-maldridge/arepo/pkg/scheduler"
	_ "github.com/the-maldridge/arepo/pkg/scheduler/local"
	_ "github.com/the-maldridge/arepo/pkg/scheduler/nomad"
	"github.com/the-maldridge/arepo/pkg/storage"
	_ "github.com/the-maldridge/arepo/pkg/storage/bc"
	_ "github.com/the-maldridge/arepo/pkg/storage/sqlite"
	"github.com/the-maldridge/arepo/pkg/trigger"
	_ "github.com/the-maldridge/arepo/pkg/trigger/gitremote"
)

// DefaultConfig is read when --config is not given.  A missing
// default file is not an error.
const DefaultConfig = "/etc/arepo.json"

type command struct {
	name string
	help string
	run  func(context.Context, *app, []string) (int, error)
}

var commands = []command{
	{"update", "check for and build outdated packages", cmdUpdate},
	{"status", "show the build status of packages", cmdStatus},
	{"status-update", "set the status of packages or of the service", cmdStatusUpdate},
	{"add", "queue packages for the next update", cmdAdd},
	{"remove", "remove packages from the repository", cmdRemove},
	{"serve", "serve the status API and optionally update periodically", cmdServe},
}

// app carries what every subcommand needs.
type app struct {
	l     hclog.Logger
	cfg   *config.Config
	archs []string
	force bool
	out   io.Writer
}

// manager opens the manager of one architecture.  The caller closes
// it.
func (a *app) manager(ctx context.Context, arch string) (*manager.Manager, error) {
	return manager.FromConfig(ctx, a.l.With("arch", arch), a.cfg, arch, a.force)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, os.Args[1:], os.Stdout)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "arepo:", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer) (int, error) {
	flagSet := pflag.NewFlagSet("arepo", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { usage(flagSet) }
	cfgPath := flagSet.StringP("config", "c", "", "configuration file (default "+DefaultConfig+")")
	logLevel := flagSet.String("log-level", "", "log level, overrides the configuration")
	archs := flagSet.StringSliceP("arch", "a", nil, "architecture to operate on, may be repeated")
	force := flagSet.Bool("force", false, "ignore the lock of another running instance")
	workers := flagSet.Int("workers", 0, "architectures processed at the same time")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0, nil
		}
		return 2, err
	}
	if flagSet.NArg() == 0 {
		usage(flagSet)
		return 2, errors.New("no command given")
	}

	cfg := config.NewConfig()
	switch {
	case *cfgPath != "":
		if err := cfg.LoadFromFile(*cfgPath); err != nil {
			return 2, err
		}
	default:
		if _, err := os.Stat(DefaultConfig); err == nil {
			if err := cfg.LoadFromFile(DefaultConfig); err != nil {
				return 2, err
			}
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *workers > 0 {
		cfg.ArchWorkers = *workers
	}

	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  "arepo",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	storage.SetLogger(appLogger)
	storage.DoCallbacks()
	scheduler.SetLogger(appLogger)
	scheduler.DoCallbacks()
	trigger.SetLogger(appLogger)
	trigger.DoCallbacks()

	a := &app{
		l:     appLogger,
		cfg:   cfg,
		archs: *archs,
		force: *force,
		out:   out,
	}
	if len(a.archs) == 0 {
		known, err := manager.Architectures(cfg)
		if err != nil {
			return 1, err
		}
		a.archs = known
	}

	name := flagSet.Arg(0)
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, a, flagSet.Args()[1:])
		}
	}
	usage(flagSet)
	return 2, errors.Errorf("unknown command %q", name)
}

func usage(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: arepo [flags] <command> [command flags] [args]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.help)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fmt.Fprint(os.Stderr, fs.FlagUsages())
}

// parseCommand parses the flags of a subcommand.  The returned code
// is only meaningful when done is set.
func parseCommand(fs *pflag.FlagSet, args []string) (done bool, code int, err error) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return true, 0, nil
		}
		return true, 2, err
	}
	return false, 0, nil
}

func requireArchs(a *app) error {
	if len(a.archs) == 0 {
		return errors.New("no architectures configured, use --arch")
	}
	return nil
}

// singleArch returns the one architecture a command operates on.
func singleArch(a *app) (string, error) {
	if err := requireArchs(a); err != nil {
		return "", err
	}
	if len(a.archs) > 1 {
		return "", errors.Errorf("command needs exactly one architecture, have %s", strings.Join(a.archs, ","))
	}
	return a.archs[0], nil
}
