// Package artifact persists downloaded video artifacts. The local path
// convention is deterministic over (project ID, segment index, input
// index, video ID), so re-running reconciliation after a crash is safe:
// an existing file short-circuits re-download.
package artifact

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
)

// Store is the artifact persistence contract used by the reconciliation
// engine. VideoPath is pure (no I/O); Exists and Save touch storage.
type Store interface {
	// VideoPath returns the canonical absolute path for a video artifact.
	VideoPath(projectID string, segmentIndex, inputIndex int, videoID string) string

	// Exists reports whether an artifact is already persisted at path.
	Exists(path string) bool

	// Save persists the artifact content at path, creating parent
	// directories as needed.
	Save(ctx context.Context, path string, r io.Reader) error
}

// relVideoPath is the artifact location relative to the store root:
// data/video_generations_result_{project}/segment_{i}/generation_result_{j}/generated_video_{id}.mp4
// The layout must stay bit-exact for idempotent resume.
func relVideoPath(projectID string, segmentIndex, inputIndex int, videoID string) string {
	return filepath.Join(
		"data",
		"video_generations_result_"+projectID,
		fmt.Sprintf("segment_%d", segmentIndex),
		fmt.Sprintf("generation_result_%d", inputIndex),
		"generated_video_"+videoID+".mp4",
	)
}
