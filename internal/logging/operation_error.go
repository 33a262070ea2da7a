package logging

import "fmt"

// OperationError annotates an error with the pipeline step, the job and the preset
// being printed. Preset is empty for steps that are not tied to one sheet.
type OperationError struct {
	Operation string
	JobID     string
	Preset    string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	switch {
	case e.JobID != "" && e.Preset != "":
		return fmt.Sprintf("%s (job_id=%s preset=%s): %v", e.Operation, e.JobID, e.Preset, e.Err)
	case e.JobID != "":
		return fmt.Sprintf("%s (job_id=%s): %v", e.Operation, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with the step that produced it. A nil err stays nil.
func NewOperationError(operation, jobID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, JobID: jobID, Err: err}
}

// NewJobError is NewOperationError for a step of a print job on preset
func NewJobError(operation, jobID, preset string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, JobID: jobID, Preset: preset, Err: err}
}
