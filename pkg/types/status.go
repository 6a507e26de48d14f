package types

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// StatusEnum is the state a package build is in.
type StatusEnum string

const (
	// StatusUnknown is assigned to every package on first
	// observation.
	StatusUnknown StatusEnum = "unknown"
	// StatusPending means the package is out of date and will be
	// built soon.
	StatusPending StatusEnum = "pending"
	// StatusBuilding means a build is running right now.
	StatusBuilding StatusEnum = "building"
	// StatusFailed means the last build or check failed.
	StatusFailed StatusEnum = "failed"
	// StatusSuccess means the package is built and up to date.
	StatusSuccess StatusEnum = "success"
)

// ParseStatus validates a status received from outside the process.
func ParseStatus(s string) (StatusEnum, error) {
	switch st := StatusEnum(s); st {
	case StatusUnknown, StatusPending, StatusBuilding, StatusFailed, StatusSuccess:
		return st, nil
	default:
		return "", errors.Errorf("invalid build status %q", s)
	}
}

// BuildStatus is a status together with the time it was set.
type BuildStatus struct {
	Status    StatusEnum `json:"status"`
	Timestamp int64      `json:"timestamp"`
}

// NewBuildStatus stamps a status with the given time.
func NewBuildStatus(s StatusEnum, at time.Time) BuildStatus {
	return BuildStatus{Status: s, Timestamp: at.Unix()}
}

func (bs BuildStatus) String() string {
	return fmt.Sprintf("%s (%s)", bs.Status, time.Unix(bs.Timestamp, 0).UTC().Format(time.RFC3339))
}
