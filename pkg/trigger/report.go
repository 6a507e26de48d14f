package trigger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/types"
)

// ReportFile is written into the repository directory after every
// result.
const ReportFile = "arepo-report.json"

type report struct {
	l     hclog.Logger
	paths types.RepositoryPaths
}

type reportBody struct {
	Architecture string
	Result       *types.Result
	Packages     []types.Package
}

func newReport(l hclog.Logger, o Options) (Trigger, error) {
	return &report{l: l.Named("report"), paths: o.Paths}, nil
}

func (r *report) OnStart(context.Context) error { return nil }
func (r *report) OnStop(context.Context) error  { return nil }

// OnResult logs the outcome and dumps it next to the repository.
func (r *report) OnResult(_ context.Context, result *types.Result, packages []types.Package) error {
	r.l.Info("Build result",
		"arch", r.paths.Architecture,
		"success", result.SuccessBases(),
		"failed", result.FailedBases(),
		"removed", result.Removed(),
		"repository", len(packages))
	for _, f := range result.Failed() {
		r.l.Warn("Package failed", "base", f.Base, "error", f.Err)
	}

	if r.paths.Root == "" {
		return nil
	}
	dir := r.paths.Repository()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(reportBody{
		Architecture: r.paths.Architecture,
		Result:       result,
		Packages:     packages,
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+ReportFile)
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, ReportFile))
}
