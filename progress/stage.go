package progress

import (
	"math"
	"time"
)

// Stage names one phase of a processing run.
type Stage string

// Stages of the default processing pipeline.
const (
	StageInitialization        Stage = "initialization"
	StageEmailClassification   Stage = "email_classification"
	StageInformationExtraction Stage = "information_extraction"
	StageVectorGeneration      Stage = "vector_generation"
	StageDatabaseStorage       Stage = "database_storage"
	StageCandidateFiltering    Stage = "candidate_filtering"
	StageMatchingAnalysis      Stage = "matching_analysis"
	StageResultGeneration      Stage = "result_generation"
)

// DefaultStages returns the default eight-stage pipeline in order.
func DefaultStages() []Stage {
	return []Stage{
		StageInitialization,
		StageEmailClassification,
		StageInformationExtraction,
		StageVectorGeneration,
		StageDatabaseStorage,
		StageCandidateFiltering,
		StageMatchingAnalysis,
		StageResultGeneration,
	}
}

// Status is the lifecycle state of one stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageProgress is an immutable snapshot of one stage's state.
type StageProgress struct {
	SessionID string    `json:"session_id"`
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Percentage returns the completion percentage rounded to two decimals.
// A zero or unknown total yields zero.
func (p StageProgress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Current) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*100) / 100
}

// Elapsed returns the time spent in the stage so far, or the final
// duration once the stage has ended. It is zero for a pending stage.
func (p StageProgress) Elapsed() time.Duration {
	if p.StartedAt.IsZero() {
		return 0
	}
	if !p.EndedAt.IsZero() {
		return p.EndedAt.Sub(p.StartedAt)
	}
	return time.Since(p.StartedAt)
}

// EstimatedRemaining extrapolates the remaining duration from the
// observed per-item rate. It is zero until at least one item has
// completed and for finished stages.
func (p StageProgress) EstimatedRemaining() time.Duration {
	if p.Current <= 0 || p.Total <= p.Current || p.Status.Terminal() {
		return 0
	}
	elapsed := p.Elapsed()
	if elapsed <= 0 {
		return 0
	}
	return time.Duration(float64(elapsed) * float64(p.Total-p.Current) / float64(p.Current))
}
