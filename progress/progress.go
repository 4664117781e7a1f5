// Package progress implements the weighted multi-phase progress tracker
// (C5): phase-weighted overall progress, ETA estimation, and
// multi-subscriber callback fan-out with per-callback error isolation.
// Grounded on core/batch/progress_tracker.py.
package progress

import (
	"log/slog"
	"time"
)

// Phase names used for weighting; unknown phases default to 0.1 (§4.5).
const (
	PhaseLoading        = "loading"
	PhasePreprocessing  = "preprocessing"
	PhaseTranslating    = "translating"
	PhasePostprocessing = "postprocessing"
	PhaseExporting      = "exporting"
)

// phaseWeights sums to 1.0, matching the table in §4.5.
var phaseWeights = map[string]float64{
	PhaseLoading:        0.05,
	PhasePreprocessing:  0.05,
	PhaseTranslating:    0.70,
	PhasePostprocessing: 0.10,
	PhaseExporting:      0.10,
}

const defaultPhaseWeight = 0.1

// State is the current progress snapshot (§3 ProgressState).
type State struct {
	TotalSteps     int
	CompletedSteps int
	CurrentPhase   string
	CurrentStep    string
	Percentage     float64
	ETASeconds     *float64
	QualityScore   float64
	StartedAt      time.Time
}

// ElapsedSeconds returns time since StartedAt.
func (s State) ElapsedSeconds() float64 {
	return time.Since(s.StartedAt).Seconds()
}

// Callback receives (overallPercentage, message, data) on every update.
// Must not block; blocking implementations should dispatch their own
// goroutine (§5 suspension points).
type Callback func(percentage float64, message string, data map[string]any)

// Tracker tracks and reports progress for a single job.
type Tracker struct {
	JobID   string
	JobName string

	state            State
	callbacks        []Callback
	phasesCompleted  []string
	currentPhase     string
	phaseProgress    float64
	phaseStartedAt   time.Time
}

// New returns a Tracker for the given job, with totalSteps as the initial
// step count (refined per-phase by StartPhase).
func New(jobID, jobName string, totalSteps int) *Tracker {
	return &Tracker{
		JobID:   jobID,
		JobName: jobName,
		state:   State{TotalSteps: totalSteps, StartedAt: time.Now()},
	}
}

// AddCallback registers a subscriber.
func (t *Tracker) AddCallback(cb Callback) {
	t.callbacks = append(t.callbacks, cb)
}

// Start resets the clock and notifies subscribers tracking has begun.
func (t *Tracker) Start() {
	t.state.StartedAt = time.Now()
	t.notify(0.0, "Starting...", nil)
	slog.Info("progress: tracking started", "job_id", t.JobID)
}

// StartPhase begins a new phase with its own step count.
func (t *Tracker) StartPhase(phase string, totalSteps int) {
	t.currentPhase = phase
	t.state.CurrentPhase = phase
	t.state.TotalSteps = totalSteps
	t.state.CompletedSteps = 0
	t.phaseProgress = 0.0
	t.phaseStartedAt = time.Now()

	t.notify(t.overallProgress(), "Starting "+phase+"...", nil)
	slog.Debug("progress: phase started", "phase", phase, "total_steps", totalSteps)
}

// Update advances progress within the current phase and recomputes ETA
// using the observed rate over the current phase only (an Open Question
// from §9, resolved: cached/from-cache completions count toward the rate
// like any other completion). Before any StartPhase call the rate is
// measured from StartedAt.
func (t *Tracker) Update(completed int, stepDescription string, quality float64, extra map[string]any) {
	t.state.CompletedSteps = completed
	t.state.CurrentStep = stepDescription
	t.state.QualityScore = quality

	if t.state.TotalSteps > 0 {
		t.phaseProgress = float64(completed) / float64(t.state.TotalSteps)
		t.state.Percentage = t.phaseProgress
	}

	if completed > 0 {
		elapsed := t.state.ElapsedSeconds()
		if !t.phaseStartedAt.IsZero() {
			elapsed = time.Since(t.phaseStartedAt).Seconds()
		}
		rate := float64(completed) / elapsed
		remaining := float64(t.state.TotalSteps - completed)
		if rate > 0 {
			eta := remaining / rate
			t.state.ETASeconds = &eta
		} else {
			t.state.ETASeconds = nil
		}
	}

	t.notify(t.overallProgress(), stepDescription, extra)
}

// CompletePhase marks the current phase fully done.
func (t *Tracker) CompletePhase() {
	if t.currentPhase == "" {
		return
	}
	completed := t.currentPhase
	t.phasesCompleted = append(t.phasesCompleted, completed)
	t.phaseProgress = 0.0
	t.currentPhase = ""

	slog.Debug("progress: phase completed", "phase", completed)
	t.notify(t.overallProgress(), "Completed "+completed, nil)
}

// Finish marks the job 100% complete (P5: finish emits exactly 1.0).
func (t *Tracker) Finish(message string) {
	t.state.Percentage = 1.0
	t.state.CurrentStep = message
	zero := 0.0
	t.state.ETASeconds = &zero

	t.notify(1.0, message, map[string]any{"completed": true})
	slog.Info("progress: complete", "job_id", t.JobID, "elapsed", t.state.ElapsedSeconds())
}

// Fail notifies subscribers of a failure without altering Percentage.
func (t *Tracker) Fail(errMsg string) {
	t.state.CurrentStep = "Failed: " + errMsg
	t.notify(t.state.Percentage, "Failed: "+errMsg, map[string]any{"failed": true, "error": errMsg})
	slog.Error("progress: failed", "job_id", t.JobID, "error", errMsg)
}

// overallProgress computes the weighted sum over completed phases plus the
// current phase's partial contribution (§4.5).
func (t *Tracker) overallProgress() float64 {
	var completedWeight float64
	for _, phase := range t.phasesCompleted {
		completedWeight += weightOf(phase)
	}
	currentContribution := weightOf(t.currentPhase) * t.phaseProgress
	total := completedWeight + currentContribution
	if total > 1.0 {
		return 1.0
	}
	return total
}

func weightOf(phase string) float64 {
	if w, ok := phaseWeights[phase]; ok {
		return w
	}
	return defaultPhaseWeight
}

// notify fans out to every subscriber, isolating panics/errors per
// callback so one bad subscriber never affects others or tracker state
// (§3 "callback errors are isolated").
func (t *Tracker) notify(percentage float64, message string, extra map[string]any) {
	data := map[string]any{
		"job_id":         t.JobID,
		"job_name":       t.JobName,
		"completed":      t.state.CompletedSteps,
		"total":          t.state.TotalSteps,
		"phase":          t.state.CurrentPhase,
		"elapsed_seconds": t.state.ElapsedSeconds(),
		"eta_seconds":    t.state.ETASeconds,
		"quality_score":  t.state.QualityScore,
	}
	for k, v := range extra {
		data[k] = v
	}

	for _, cb := range t.callbacks {
		t.invokeSafely(cb, percentage, message, data)
	}
}

func (t *Tracker) invokeSafely(cb Callback, percentage float64, message string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("progress: callback panicked", "recovered", r)
		}
	}()
	cb(percentage, message, data)
}

// GetState returns a defensive snapshot of tracker state for diagnostics.
func (t *Tracker) GetState() map[string]any {
	return map[string]any{
		"job_id":           t.JobID,
		"job_name":         t.JobName,
		"progress":         t.overallProgress(),
		"total":            t.state.TotalSteps,
		"completed":        t.state.CompletedSteps,
		"percentage":       t.state.Percentage,
		"phase":            t.state.CurrentPhase,
		"phases_completed": t.phasesCompleted,
		"eta_seconds":      t.state.ETASeconds,
	}
}

// NewLoggingCallback returns a Callback that logs every interval-th update
// (supplements core/batch/progress_tracker.py's create_logging_callback).
func NewLoggingCallback(interval int) Callback {
	if interval <= 0 {
		interval = 5
	}
	count := 0
	return func(percentage float64, message string, data map[string]any) {
		count++
		if count%interval == 0 || percentage >= 1.0 {
			slog.Info("progress: update",
				"completed", data["completed"], "total", data["total"],
				"percentage", percentage, "message", message)
		}
	}
}
