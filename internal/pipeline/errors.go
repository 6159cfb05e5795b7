package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies where in the pipeline an error happened. The stage, not
// the error value, decides the policy: every per-frame stage is absorbed,
// dependency resolution degrades to pass-through, and only fatal I/O aborts
// the job. That dispatch lives in one place (Orchestrator.Run) so the
// classification cannot drift per call site.
type Stage string

const (
	StageDependencyLoad Stage = "dependency_load"
	StageExtract        Stage = "extract"
	StageDetect         Stage = "detect"
	StageComposite      Stage = "composite"
	StageCleanup        Stage = "cleanup"
)

// StageError wraps a collaborator failure with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func extractionError(err error) *StageError {
	return &StageError{Stage: StageExtract, Err: err}
}

func detectionError(err error) *StageError {
	return &StageError{Stage: StageDetect, Err: err}
}

func compositeError(err error) *StageError {
	return &StageError{Stage: StageComposite, Err: err}
}

// FatalIOError is the only error class that escapes the orchestrator: the
// pipeline cannot produce any output at all (for example the frame working
// directory cannot be created).
type FatalIOError struct {
	Err error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("fatal io: %v", e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the job.
func IsFatal(err error) bool {
	var f *FatalIOError
	return errors.As(err, &f)
}
