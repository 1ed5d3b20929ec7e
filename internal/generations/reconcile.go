package generations

import (
	"context"
	"sync"
	"time"

	"github.com/ovenai/adstudio-api/internal/videogen"
)

// AwaitCompletion repeats reconciliation passes at the configured
// interval until the tree reaches a terminal status or the configured
// timeout elapses. Hitting the timeout is not an error: the latest tree
// is returned and the caller inspects its status.
func (e *Engine) AwaitCompletion(ctx context.Context, gens *VideoGenerations) (*VideoGenerations, error) {
	deadline := time.Now().Add(e.pollTimeout)

	out, err := e.PollAndSave(ctx, gens)
	if err != nil {
		return nil, err
	}

	for !out.Status.IsTerminal() {
		if time.Now().Add(e.pollInterval).After(deadline) {
			e.logger.Warn("await completion timed out",
				"project_id", out.ProjectID,
				"status", out.Status,
				"timeout", e.pollTimeout,
			)
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.pollInterval):
		}

		out, err = e.PollAndSave(ctx, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PollAndSave runs one reconciliation pass over a generation tree: it
// refreshes every non-terminal leaf from its provider, downloads newly
// completed videos into the artifact store, and re-derives segment and
// overall statuses. The input tree is never mutated; the refreshed tree
// is returned.
//
// Failures are contained per leaf. A failed status poll keeps the prior
// leaf state and records the detail on the leaf; a failed download keeps
// the leaf completed and records the detail. The pass itself only fails
// on context cancellation, so a flaky provider never wedges the rest of
// the tree.
func (e *Engine) PollAndSave(ctx context.Context, gens *VideoGenerations) (*VideoGenerations, error) {
	out := gens.Clone()

	var wg sync.WaitGroup
	for si := range out.Segments {
		seg := &out.Segments[si]
		for ri := range seg.GenerationResults {
			wg.Add(1)
			go func(segmentIndex int, leaf *videogen.GenerationResult) {
				defer wg.Done()
				e.reconcileLeaf(ctx, out.ProjectID, segmentIndex, leaf)
			}(seg.SegmentIndex, &seg.GenerationResults[ri])
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for si := range out.Segments {
		out.Segments[si].Status = deriveResultsStatus(out.Segments[si].GenerationResults)
	}
	out.Status = deriveSegmentsStatus(out.Segments)
	return out, nil
}

// reconcileLeaf refreshes one leaf in place: a status poll for
// non-terminal leaves, then a download for completed leaves whose
// artifact is not yet on disk. Terminal leaves are never re-polled, and
// an existing artifact is never re-downloaded, so repeated passes
// converge without duplicate provider calls.
func (e *Engine) reconcileLeaf(ctx context.Context, projectID string, segmentIndex int, leaf *videogen.GenerationResult) {
	if !leaf.Video.Status.IsTerminal() {
		refreshed, err := e.svc.GetStatus(ctx, leaf.Provider, leaf.Video.ID)
		if err != nil {
			leaf.Video.Error = "Status check failed: " + err.Error()
			e.logger.Warn("status check failed",
				"project_id", projectID,
				"segment_index", segmentIndex,
				"input_index", leaf.InputIndex,
				"video_id", leaf.Video.ID,
				"error", err,
			)
			return
		}
		// Providers report CreatedAt unreliably on polls; the submission
		// timestamp already on the leaf is authoritative.
		refreshed.CreatedAt = leaf.Video.CreatedAt
		leaf.Video = refreshed
	}

	if leaf.Video.Status != videogen.StatusCompleted || leaf.Video.VideoURL == "" {
		return
	}

	path := e.store.VideoPath(projectID, segmentIndex, leaf.InputIndex, leaf.Video.ID)
	if e.store.Exists(path) {
		return
	}

	body, err := e.svc.OpenVideo(ctx, leaf.Provider, leaf.Video.VideoURL)
	if err != nil {
		leaf.Video.Error = "Download failed: " + err.Error()
		e.logger.Warn("download failed",
			"project_id", projectID,
			"segment_index", segmentIndex,
			"input_index", leaf.InputIndex,
			"video_id", leaf.Video.ID,
			"error", err,
		)
		return
	}
	defer func() { _ = body.Close() }()

	if err := e.store.Save(ctx, path, body); err != nil {
		leaf.Video.Error = "Download failed: " + err.Error()
		e.logger.Warn("download failed",
			"project_id", projectID,
			"segment_index", segmentIndex,
			"input_index", leaf.InputIndex,
			"video_id", leaf.Video.ID,
			"error", err,
		)
		return
	}

	e.logger.Info("video saved",
		"project_id", projectID,
		"segment_index", segmentIndex,
		"input_index", leaf.InputIndex,
		"video_id", leaf.Video.ID,
		"path", path,
	)
}
