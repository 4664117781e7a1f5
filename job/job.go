// Package job implements the per-job lifecycle (C6): state transitions,
// retry budget, and timing records. Grounded on core/batch/job_handler.py.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func invalidTransitionError(from, to State) error {
	return fmt.Errorf("job: invalid transition %s -> %s", from, to)
}

// State enumerates JobState per §3, with the OCR_PROCESSING state
// supplemented from the Python original's job_handler.py (see
// SPEC_FULL.md Part C.1). It is an optional insertion between
// LoadingInput and Preprocessing; the eleven states and their order
// named in spec.md §3 are unchanged.
type State string

const (
	StateInitializing  State = "initializing"
	StateLoadingInput  State = "loading_input"
	StateOCRProcessing State = "ocr_processing"
	StatePreprocessing State = "preprocessing"
	StateChunking      State = "chunking"
	StateTranslating   State = "translating"
	StateMerging       State = "merging"
	StatePostprocessing State = "postprocessing"
	StateExporting     State = "exporting"
	StateFinalizing    State = "finalizing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// order lists the forward, one-way transition sequence (§3). OCRProcessing
// is reachable only when explicitly requested via TransitionTo; it is not
// on the default happy-path order used by canTransition.
var order = []State{
	StateInitializing,
	StateLoadingInput,
	StatePreprocessing,
	StateChunking,
	StateTranslating,
	StateMerging,
	StatePostprocessing,
	StateExporting,
	StateFinalizing,
	StateCompleted,
}

func indexOf(s State) int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether a state has no outgoing transitions in normal operation.
func IsTerminal(s State) bool { return s == StateCompleted || s == StateFailed }

// Timing records phase durations, recorded atomically at each transition (§3).
type Timing struct {
	StartedAt      time.Time
	CompletedAt    *time.Time
	PhaseDurations map[State]time.Duration
}

// RecordPhase stores the elapsed duration for a phase.
func (t *Timing) RecordPhase(state State, d time.Duration) {
	if t.PhaseDurations == nil {
		t.PhaseDurations = make(map[State]time.Duration)
	}
	t.PhaseDurations[state] = d
}

// Result is the user-visible outcome of a job, returned on both success
// and failure (§7 "User-visible failure").
type Result struct {
	Success         bool
	JobID           string
	Error           string
	DurationSeconds float64
	Metadata        map[string]any
}

// NewJobID generates a unique job identifier.
func NewJobID() string { return uuid.NewString() }

// Handler drives a single job's lifecycle: forward-only transitions with
// one backward retry edge (Failed -> Initializing via PrepareRetry).
type Handler struct {
	ID          string
	State       State
	RetryCount  int
	MaxRetries  int
	Metadata    map[string]any
	LastError   string

	timing       Timing
	phaseStarted time.Time
}

// New returns a Handler in StateInitializing.
func New(jobID string, maxRetries int) *Handler {
	return &Handler{
		ID:         jobID,
		State:      StateInitializing,
		MaxRetries: maxRetries,
		Metadata:   make(map[string]any),
	}
}

// Start records the job start time.
func (h *Handler) Start() {
	h.timing.StartedAt = time.Now()
	h.phaseStarted = h.timing.StartedAt
}

// TransitionTo moves the job forward to the next state, recording the
// elapsed time in the phase just left. Only forward transitions (in
// declared order) are allowed during normal operation; OCRProcessing may
// be entered directly after LoadingInput and exited directly into
// Preprocessing as a supplemental optional state.
func (h *Handler) TransitionTo(next State) error {
	if !h.canTransition(next) {
		return invalidTransitionError(h.State, next)
	}

	now := time.Now()
	h.timing.RecordPhase(h.State, now.Sub(h.phaseStarted))
	h.phaseStarted = now
	h.State = next
	return nil
}

func (h *Handler) canTransition(next State) bool {
	if h.State == StateLoadingInput && next == StateOCRProcessing {
		return true
	}
	if h.State == StateOCRProcessing && next == StatePreprocessing {
		return true
	}
	if next == StateFailed {
		return !IsTerminal(h.State)
	}

	curIdx := indexOf(h.State)
	nextIdx := indexOf(next)
	return curIdx >= 0 && nextIdx == curIdx+1
}

// AddMetadata attaches a key/value pair to the job's metadata bag.
func (h *Handler) AddMetadata(key string, value any) {
	h.Metadata[key] = value
}

// Complete finalizes a successful job.
func (h *Handler) Complete() Result {
	now := time.Now()
	h.timing.CompletedAt = &now
	h.timing.RecordPhase(h.State, now.Sub(h.phaseStarted))
	h.State = StateCompleted

	return Result{
		Success:         true,
		JobID:           h.ID,
		DurationSeconds: now.Sub(h.timing.StartedAt).Seconds(),
		Metadata:        h.Metadata,
	}
}

// Fail finalizes a failed job, recording the cause.
func (h *Handler) Fail(errMsg string) Result {
	now := time.Now()
	h.timing.CompletedAt = &now
	h.timing.RecordPhase(h.State, now.Sub(h.phaseStarted))
	h.State = StateFailed
	h.LastError = errMsg

	return Result{
		Success:         false,
		JobID:           h.ID,
		Error:           errMsg,
		DurationSeconds: now.Sub(h.timing.StartedAt).Seconds(),
		Metadata:        h.Metadata,
	}
}

// CanRetry reports whether PrepareRetry would succeed (P6).
func (h *Handler) CanRetry() bool {
	return h.State == StateFailed && h.RetryCount < h.MaxRetries
}

// PrepareRetry is the sole backward edge: resets to Initializing,
// increments RetryCount, clears LastError. Returns false, no-op, once the
// retry budget is exhausted (P6: at most MaxRetries successes).
func (h *Handler) PrepareRetry() bool {
	if !h.CanRetry() {
		return false
	}
	h.RetryCount++
	h.State = StateInitializing
	h.LastError = ""
	h.phaseStarted = time.Now()
	return true
}

// GetStateSummary returns a diagnostic snapshot.
func (h *Handler) GetStateSummary() map[string]any {
	return map[string]any{
		"job_id":      h.ID,
		"state":       h.State,
		"retry_count": h.RetryCount,
		"max_retries": h.MaxRetries,
		"last_error":  h.LastError,
	}
}
