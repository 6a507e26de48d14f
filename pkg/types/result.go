package types

import (
	"encoding/json"
	"sort"
)

// A Failure is a package base that could not be built along with the
// reason why.
type Failure struct {
	Base string
	Err  error
}

// Result aggregates the outcome of a build invocation.  The scheduler
// is the only writer; everything handed out by the accessors is a
// copy.
type Result struct {
	success []Package
	failed  []Failure
	removed []string
}

// AddSuccess records a successfully built package.
func (r *Result) AddSuccess(p Package) {
	r.success = append(r.success, p)
}

// AddFailed records a failed package base.
func (r *Result) AddFailed(base string, err error) {
	r.failed = append(r.failed, Failure{Base: base, Err: err})
}

// AddRemoved records a base that was dropped from the repository.
func (r *Result) AddRemoved(base string) {
	r.removed = append(r.removed, base)
}

// Merge appends another result to this one.
func (r *Result) Merge(o *Result) {
	if o == nil {
		return
	}
	r.success = append(r.success, o.success...)
	r.failed = append(r.failed, o.failed...)
	r.removed = append(r.removed, o.removed...)
}

// Success returns the successfully built packages.
func (r *Result) Success() []Package {
	return append([]Package(nil), r.success...)
}

// Failed returns the failed bases and their errors.
func (r *Result) Failed() []Failure {
	return append([]Failure(nil), r.failed...)
}

// IsEmpty is true when nothing was attempted.
func (r *Result) IsEmpty() bool {
	return len(r.success) == 0 && len(r.failed) == 0 && len(r.removed) == 0
}

// HasFailures is true when at least one package failed.
func (r *Result) HasFailures() bool {
	return len(r.failed) > 0
}

// SuccessBases returns the sorted bases that were built.
func (r *Result) SuccessBases() []string {
	out := make([]string, len(r.success))
	for i, p := range r.success {
		out[i] = p.Base
	}
	sort.Strings(out)
	return out
}

// FailedBases returns the sorted bases that failed.
func (r *Result) FailedBases() []string {
	out := make([]string, len(r.failed))
	for i, f := range r.failed {
		out[i] = f.Base
	}
	sort.Strings(out)
	return out
}

// Removed returns the sorted bases that were removed.
func (r *Result) Removed() []string {
	out := append([]string(nil), r.removed...)
	sort.Strings(out)
	return out
}

// MarshalJSON renders the result for triggers and the status API.
func (r *Result) MarshalJSON() ([]byte, error) {
	failed := make(map[string]string, len(r.failed))
	for _, f := range r.failed {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		failed[f.Base] = msg
	}
	return json.Marshal(struct {
		Success []Package
		Failed  map[string]string
		Removed []string `json:",omitempty"`
	}{
		Success: r.success,
		Failed:  failed,
		Removed: r.Removed(),
	})
}
