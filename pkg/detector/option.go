package detector

import (
	"time"
)

// WithKnown sets the source of packages already in the repository.
func WithKnown(k Known) Option {
	return func(d *Detector) { d.known = k }
}

// WithStatus sets where progress is reported to.
func WithStatus(s StatusWriter) Option {
	return func(d *Detector) { d.status = s }
}

// WithQueue enables the manual lane.
func WithQueue(q BuildQueue) Option {
	return func(d *Detector) { d.queue = q }
}

// WithLookup enables the remote lane.
func WithLookup(l Lookup) Option {
	return func(d *Detector) { d.lookup = l }
}

// WithRefresher sets how source clones are synchronized.
func WithRefresher(r SourceRefresher) Option {
	return func(d *Detector) { d.refresher = r }
}

// WithVersionComputer sets how live package versions are computed.
func WithVersionComputer(v VersionComputer) Option {
	return func(d *Detector) { d.versions = v }
}

// WithLocalLoader sets how recipes in the cache are read.
func WithLocalLoader(ll LocalLoader) Option {
	return func(d *Detector) { d.loader = ll }
}

// WithIgnoreList excludes bases from the remote lane.
func WithIgnoreList(bases []string) Option {
	return func(d *Detector) {
		for _, b := range bases {
			d.ignore[b] = struct{}{}
		}
	}
}

// WithVCSFreshness sets how long the stored version of a live package
// is trusted after it was built.
func WithVCSFreshness(window time.Duration) Option {
	return func(d *Detector) { d.freshness = window }
}

// WithClock overrides the current time.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}
