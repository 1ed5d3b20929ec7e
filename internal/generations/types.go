// Package generations turns an approved storyboard project into provider
// generation requests, tracks the resulting tree of per-segment results,
// and reconciles that tree against live provider state.
package generations

import (
	"github.com/ovenai/adstudio-api/internal/videogen"
)

// Status is the derived lifecycle state of a segment or of the whole
// generation tree. Unlike a single video's status it includes pending,
// the state of a node with no results yet.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SegmentGeneration holds the generation results for one storyboard
// segment. SegmentIndex is the segment's position in the storyboard and
// never changes.
type SegmentGeneration struct {
	SegmentIndex      int                         `json:"segment_index"`
	SceneDescription  string                      `json:"scene_description,omitempty"`
	Status            Status                      `json:"status"`
	GenerationResults []videogen.GenerationResult `json:"generation_results"`
}

// VideoGenerations is the full generation tree for one project.
type VideoGenerations struct {
	ProjectID string              `json:"project_id"`
	CreatedAt string              `json:"created_at"`
	Status    Status              `json:"status"`
	Segments  []SegmentGeneration `json:"segments"`
}

// Clone returns a deep copy of the tree. Reconciliation operates on a
// clone so the caller's tree is never mutated.
func (v *VideoGenerations) Clone() *VideoGenerations {
	out := &VideoGenerations{
		ProjectID: v.ProjectID,
		CreatedAt: v.CreatedAt,
		Status:    v.Status,
		Segments:  make([]SegmentGeneration, len(v.Segments)),
	}
	for i, seg := range v.Segments {
		cp := seg
		cp.GenerationResults = make([]videogen.GenerationResult, len(seg.GenerationResults))
		copy(cp.GenerationResults, seg.GenerationResults)
		out.Segments[i] = cp
	}
	return out
}

// deriveResultsStatus folds a segment's leaf statuses into one segment
// status. Completion requires every leaf completed; a single failed leaf
// fails the segment; any queued or in-progress leaf keeps it in
// progress; no results means pending.
func deriveResultsStatus(results []videogen.GenerationResult) Status {
	if len(results) == 0 {
		return StatusPending
	}

	allCompleted := true
	anyFailed := false
	anyActive := false
	for _, r := range results {
		switch r.Video.Status {
		case videogen.StatusCompleted:
		case videogen.StatusFailed:
			anyFailed = true
			allCompleted = false
		case videogen.StatusQueued, videogen.StatusInProgress:
			anyActive = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		return StatusCompleted
	case anyFailed:
		return StatusFailed
	case anyActive:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// deriveSegmentsStatus folds segment statuses into the overall tree
// status using the same precedence as deriveResultsStatus.
func deriveSegmentsStatus(segments []SegmentGeneration) Status {
	if len(segments) == 0 {
		return StatusPending
	}

	allCompleted := true
	anyFailed := false
	anyActive := false
	for _, s := range segments {
		switch s.Status {
		case StatusCompleted:
		case StatusFailed:
			anyFailed = true
			allCompleted = false
		case StatusInProgress:
			anyActive = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		return StatusCompleted
	case anyFailed:
		return StatusFailed
	case anyActive:
		return StatusInProgress
	default:
		return StatusPending
	}
}
