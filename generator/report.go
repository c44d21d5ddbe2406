package generator

import (
	"errors"
	"fmt"

	"github.com/sarchlab/asmgen/geometry"
)

// ErrStale reports an artifact on disk that differs from what would be
// generated.
var ErrStale = errors.New("artifact is out of date")

// LevelError is the failure of one cache level.
type LevelError struct {
	Level string
	Err   error
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("level %s: %v", e.Level, e.Err)
}

func (e *LevelError) Unwrap() error {
	return e.Err
}

// LevelResult is the outcome for one cache level.
type LevelResult struct {
	Level       string
	Geometry    geometry.Geometry
	FileName    string
	Path        string
	Fingerprint uint64
	ProbeUnroll int
	PrimeUnroll int
	Written     bool
	Stale       bool
	Err         error
}

// OK tells whether the level succeeded.
func (r LevelResult) OK() bool {
	return r.Err == nil
}

// RunReport is the outcome of a run.
type RunReport struct {
	Mode    Mode
	Results []LevelResult

	// Fatal is set when the shared inputs could not be read. No level is
	// processed in that case.
	Fatal error
}

// Failed returns the results of the levels that failed.
func (r *RunReport) Failed() []LevelResult {
	var failed []LevelResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}

	return failed
}

// Err joins the fatal error and all level errors.
func (r *RunReport) Err() error {
	errs := make([]error, 0, len(r.Results)+1)
	if r.Fatal != nil {
		errs = append(errs, r.Fatal)
	}

	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}

	return errors.Join(errs...)
}
