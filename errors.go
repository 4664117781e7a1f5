package aps

import "errors"

// Sentinel errors for the translation-and-publishing pipeline, following
// the package-prefixed convention used throughout this codebase.
var (
	// ErrNoInput is returned when a job has neither inline text nor a file path.
	ErrNoInput = errors.New("aps: no input text or path provided")

	// ErrInputRead is returned when the input file cannot be read or decoded.
	ErrInputRead = errors.New("aps: failed to read input")

	// ErrJobTimeout is returned when a job exceeds its wall-clock budget.
	ErrJobTimeout = errors.New("aps: job timed out")

	// ErrChunkTimeout is returned when a single chunk exceeds its translation timeout.
	ErrChunkTimeout = errors.New("aps: chunk translation timed out")

	// ErrCancelled is returned when a job is cancelled externally.
	ErrCancelled = errors.New("aps: job cancelled")

	// ErrTranslationProvider is returned when the translation callable fails.
	ErrTranslationProvider = errors.New("aps: translation provider error")

	// ErrContractViolation is returned when a contract fails validation at a stage boundary.
	ErrContractViolation = errors.New("aps: contract validation failed")

	// ErrInvalidTransition is returned for an illegal job state transition.
	ErrInvalidTransition = errors.New("aps: invalid state transition")

	// ErrRetryBudgetExhausted is returned when prepare_retry is called with no budget left.
	ErrRetryBudgetExhausted = errors.New("aps: retry budget exhausted")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("aps: invalid configuration")

	// ErrTemplateMissing is returned when a named render template has no cached bytes
	// and no default template is available either.
	ErrTemplateMissing = errors.New("aps: template not found")

	// ErrUnsupportedFormat is returned for unrecognized input/output formats.
	ErrUnsupportedFormat = errors.New("aps: unsupported format")
)

// ErrorKind discriminates the error taxonomy from spec §7, so callers can
// branch with errors.As instead of string matching.
type ErrorKind string

const (
	KindNoInput             ErrorKind = "no_input"
	KindInputRead           ErrorKind = "input_read"
	KindChunkTimeout        ErrorKind = "chunk_timeout"
	KindJobTimeout          ErrorKind = "job_timeout"
	KindCancelled           ErrorKind = "cancelled"
	KindTranslationProvider ErrorKind = "translation_provider"
	KindPreservationLoss    ErrorKind = "preservation_loss"
	KindContractViolation   ErrorKind = "contract_violation"
	KindTemplateMissing     ErrorKind = "template_missing"
)

// JobError carries a classified failure plus the underlying cause, so
// the orchestrator can report OrchestratorResult.Error with both a
// human message and a machine-checkable Kind.
type JobError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *JobError) Unwrap() error { return e.Cause }

// NewJobError builds a JobError, following the teacher's sentinel-error
// style but attaching the taxonomy kind needed by §7.
func NewJobError(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Cause: cause}
}
