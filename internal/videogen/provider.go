package videogen

import (
	"context"
	"io"
	"time"
)

// VideoProvider is the uniform contract each provider adapter implements.
// Generate returns immediately with a non-terminal GeneratedVideo; it
// never blocks for completion.
type VideoProvider interface {
	// Name returns the provider tag.
	Name() Provider

	// Generate issues the creation call and returns the initial record.
	Generate(ctx context.Context, req Request, cfg GenerationConfig) (GeneratedVideo, error)

	// GetStatus performs a single status poll. A terminal failed video is
	// a normal, successful poll whose payload reports failure, not an
	// error return.
	GetStatus(ctx context.Context, videoID string) (GeneratedVideo, error)

	// GetVideoURL returns the download URL for a completed video and
	// fails if the video is not in terminal-success state.
	GetVideoURL(ctx context.Context, videoID string) (string, error)

	// OpenVideo opens the video content at the given URL for reading,
	// attaching provider-specific auth where the provider requires it
	// for content retrieval. The caller closes the returned reader.
	OpenVideo(ctx context.Context, videoURL string) (io.ReadCloser, error)
}

// WaitForCompletion polls GetStatus at a fixed interval until the video
// reaches a terminal state or the timeout elapses. It is the only
// component in this package permitted to sleep; bulk flows use
// single-poll reconciliation instead.
func WaitForCompletion(ctx context.Context, p VideoProvider, videoID string, pollInterval, timeout time.Duration) (GeneratedVideo, error) {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	deadline := time.Now().Add(timeout)
	for {
		video, err := p.GetStatus(ctx, videoID)
		if err != nil {
			return GeneratedVideo{}, err
		}
		if video.Status.IsTerminal() {
			return video, nil
		}

		if time.Now().Add(pollInterval).After(deadline) {
			return GeneratedVideo{}, &TimeoutError{
				Provider: p.Name(),
				VideoID:  videoID,
				Elapsed:  timeout,
			}
		}

		select {
		case <-ctx.Done():
			return GeneratedVideo{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
