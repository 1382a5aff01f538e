package domain

import "time"

// WorkflowStatus enumerates the stage a Workflow currently occupies.
type WorkflowStatus string

const (
	WorkflowDraft           WorkflowStatus = "draft"
	WorkflowScriptGenerated WorkflowStatus = "script_generated"
	WorkflowScriptUploaded  WorkflowStatus = "script_uploaded"
	WorkflowAudioGenerated  WorkflowStatus = "audio_generated"
	WorkflowFinalized       WorkflowStatus = "finalized"
)

// Workflow is the central, mutable state carrier for a podcast job.
type Workflow struct {
	ID          string
	Name        string
	SpeechIDs   []string
	Script      *string
	AudioURL    *string
	RSSURL      *string
	Status      WorkflowStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AtOrPastAudioStage reports whether the workflow has advanced far enough
// that a non-null Script is required (invariant 2 in spec §8).
func (w Workflow) AtOrPastAudioStage() bool {
	switch w.Status {
	case WorkflowAudioGenerated, WorkflowFinalized:
		return true
	default:
		return false
	}
}

// WorkflowUpdate is a partial-update payload; nil fields are left untouched.
type WorkflowUpdate struct {
	Script   *string
	AudioURL *string
	RSSURL   *string
	Status   *WorkflowStatus
}

// WorkflowWithSpeeches is the resolved view returned by GET /api/workflow/:id.
type WorkflowWithSpeeches struct {
	Workflow
	Speeches []Speech
}
