package generations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenai/adstudio-api/internal/artifact"
	"github.com/ovenai/adstudio-api/internal/project"
	"github.com/ovenai/adstudio-api/internal/videogen"
)

// fakeService is a configurable GenerationService stub. Its callbacks run
// concurrently during reconciliation, so call recording is mutex-guarded.
type fakeService struct {
	mu sync.Mutex

	generateBatchFn func(ctx context.Context, inputs []videogen.BatchInput, cfg videogen.GenerationConfig) ([]videogen.GenerationResult, error)
	getStatusFn     func(ctx context.Context, provider videogen.Provider, videoID string) (videogen.GeneratedVideo, error)
	openVideoFn     func(ctx context.Context, provider videogen.Provider, videoURL string) (io.ReadCloser, error)

	polledIDs []string
	openedURL []string
}

func (f *fakeService) GenerateBatch(ctx context.Context, inputs []videogen.BatchInput, cfg videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
	return f.generateBatchFn(ctx, inputs, cfg)
}

func (f *fakeService) GetStatus(ctx context.Context, provider videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
	f.mu.Lock()
	f.polledIDs = append(f.polledIDs, videoID)
	f.mu.Unlock()
	return f.getStatusFn(ctx, provider, videoID)
}

func (f *fakeService) OpenVideo(ctx context.Context, provider videogen.Provider, videoURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.openedURL = append(f.openedURL, videoURL)
	f.mu.Unlock()
	return f.openVideoFn(ctx, provider, videoURL)
}

func (f *fakeService) polled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polledIDs...)
}

func (f *fakeService) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.openedURL...)
}

func newTestEngine(t *testing.T, svc GenerationService) (*Engine, *artifact.LocalStore) {
	t.Helper()
	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(svc, store, logger), store
}

func testProject() project.Project {
	return project.Project{
		Title:       "Summer sale ad",
		AspectRatio: "16:9",
		Storyboard: project.Storyboard{
			Segments: []project.Segment{
				{
					SceneDescription: "opening shot",
					Duration:         5.7,
					GenerationInputs: []project.GenerationInput{
						{Provider: "sora", Prompt: "sunny beach"},
						{Provider: "veo", Prompt: "stylized beach", NegativePrompt: "rain"},
					},
				},
				{
					SceneDescription: "closing shot",
					Duration:         8,
					GenerationInputs: []project.GenerationInput{
						{Provider: "veo", Prompt: "logo reveal"},
					},
				},
			},
		},
	}
}

func TestGenerateFromProject(t *testing.T) {
	var mu sync.Mutex
	var gotConfigs []videogen.GenerationConfig

	svc := &fakeService{
		generateBatchFn: func(_ context.Context, inputs []videogen.BatchInput, cfg videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
			mu.Lock()
			gotConfigs = append(gotConfigs, cfg)
			mu.Unlock()

			results := make([]videogen.GenerationResult, len(inputs))
			for i, in := range inputs {
				results[i] = videogen.GenerationResult{
					InputIndex: in.InputIndex,
					Provider:   in.Request.Provider(),
					Video: videogen.GeneratedVideo{
						ID:        "vid",
						Status:    videogen.StatusQueued,
						CreatedAt: time.Now().UTC(),
					},
				}
			}
			return results, nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	gens, err := engine.GenerateFromProject(context.Background(), "proj-1", testProject())
	require.NoError(t, err)

	assert.Equal(t, "proj-1", gens.ProjectID)
	assert.NotEmpty(t, gens.CreatedAt)
	assert.Equal(t, StatusInProgress, gens.Status)

	require.Len(t, gens.Segments, 2)
	assert.Equal(t, 0, gens.Segments[0].SegmentIndex)
	assert.Equal(t, "opening shot", gens.Segments[0].SceneDescription)
	assert.Equal(t, StatusInProgress, gens.Segments[0].Status)
	require.Len(t, gens.Segments[0].GenerationResults, 2)
	assert.Equal(t, 0, gens.Segments[0].GenerationResults[0].InputIndex)
	assert.Equal(t, videogen.ProviderSora, gens.Segments[0].GenerationResults[0].Provider)
	assert.Equal(t, 1, gens.Segments[0].GenerationResults[1].InputIndex)
	assert.Equal(t, videogen.ProviderVeo, gens.Segments[0].GenerationResults[1].Provider)

	assert.Equal(t, 1, gens.Segments[1].SegmentIndex)
	require.Len(t, gens.Segments[1].GenerationResults, 1)

	// 5.7 rounds to 6; 8 stays 8; both landscape.
	require.Len(t, gotConfigs, 2)
	assert.Equal(t, 6, gotConfigs[0].Duration)
	assert.Equal(t, videogen.AspectLandscape, gotConfigs[0].AspectRatio)
	assert.Equal(t, 8, gotConfigs[1].Duration)
}

func TestGenerateFromProject_EmptySegment(t *testing.T) {
	svc := &fakeService{
		generateBatchFn: func(context.Context, []videogen.BatchInput, videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
			t.Fatal("GenerateBatch must not be called for a segment with no inputs")
			return nil, nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	proj := project.Project{
		Storyboard: project.Storyboard{
			Segments: []project.Segment{
				{SceneDescription: "placeholder", Duration: 4},
			},
		},
	}

	gens, err := engine.GenerateFromProject(context.Background(), "proj-1", proj)
	require.NoError(t, err)

	require.Len(t, gens.Segments, 1)
	assert.Equal(t, StatusPending, gens.Segments[0].Status)
	assert.Empty(t, gens.Segments[0].GenerationResults)
	assert.Equal(t, StatusPending, gens.Status)
}

func TestGenerateFromProject_BatchFailureAborts(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := &fakeService{
		generateBatchFn: func(context.Context, []videogen.BatchInput, videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
			return nil, boom
		},
	}
	engine, _ := newTestEngine(t, svc)

	_, err := engine.GenerateFromProject(context.Background(), "proj-1", testProject())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func inProgressTree(createdAt time.Time) *VideoGenerations {
	return &VideoGenerations{
		ProjectID: "proj-1",
		CreatedAt: "2026-01-02T03:04:05Z",
		Status:    StatusInProgress,
		Segments: []SegmentGeneration{
			{
				SegmentIndex: 0,
				Status:       StatusInProgress,
				GenerationResults: []videogen.GenerationResult{
					{
						InputIndex: 0,
						Provider:   videogen.ProviderSora,
						Video: videogen.GeneratedVideo{
							ID:        "video_a",
							Status:    videogen.StatusInProgress,
							CreatedAt: createdAt,
						},
					},
					{
						InputIndex: 1,
						Provider:   videogen.ProviderVeo,
						Video: videogen.GeneratedVideo{
							ID:        "operations/op_b",
							Status:    videogen.StatusCompleted,
							CreatedAt: createdAt,
							VideoURL:  "https://cdn.example.com/op_b.mp4",
						},
					},
				},
			},
		},
	}
}

func TestPollAndSave_RefreshesAndDownloads(t *testing.T) {
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{
				ID:        videoID,
				Status:    videogen.StatusCompleted,
				CreatedAt: time.Now().UTC(), // providers report this unreliably
				VideoURL:  "https://cdn.example.com/" + videoID + ".mp4",
			}, nil
		},
		openVideoFn: func(_ context.Context, _ videogen.Provider, videoURL string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("content of " + videoURL)), nil
		},
	}
	engine, store := newTestEngine(t, svc)

	input := inProgressTree(createdAt)
	out, err := engine.PollAndSave(context.Background(), input)
	require.NoError(t, err)

	// Input tree untouched.
	assert.Equal(t, videogen.StatusInProgress, input.Segments[0].GenerationResults[0].Video.Status)

	// Only the non-terminal leaf was polled.
	assert.Equal(t, []string{"video_a"}, svc.polled())

	// Refreshed leaf keeps the original creation time.
	leaf := out.Segments[0].GenerationResults[0]
	assert.Equal(t, videogen.StatusCompleted, leaf.Video.Status)
	assert.True(t, leaf.Video.CreatedAt.Equal(createdAt))

	// Both completed leaves were downloaded to their canonical paths.
	for i, id := range []string{"video_a", "operations/op_b"} {
		path := store.VideoPath("proj-1", 0, i, id)
		data, err := os.ReadFile(path)
		require.NoError(t, err, "artifact for %s", id)
		assert.Contains(t, string(data), "content of")
	}

	assert.Equal(t, StatusCompleted, out.Segments[0].Status)
	assert.Equal(t, StatusCompleted, out.Status)
}

func TestPollAndSave_SkipsExistingArtifact(t *testing.T) {
	createdAt := time.Now().UTC()
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
		},
		openVideoFn: func(context.Context, videogen.Provider, string) (io.ReadCloser, error) {
			return nil, errors.New("must not download")
		},
	}
	engine, store := newTestEngine(t, svc)

	tree := inProgressTree(createdAt)

	// Pre-persist the completed leaf's artifact.
	path := store.VideoPath("proj-1", 0, 1, "operations/op_b")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0600))

	out, err := engine.PollAndSave(context.Background(), tree)
	require.NoError(t, err)

	assert.Empty(t, svc.opened(), "existing artifact must not be re-downloaded")
	leaf := out.Segments[0].GenerationResults[1]
	assert.Empty(t, leaf.Video.Error)
	assert.Equal(t, "https://cdn.example.com/op_b.mp4", leaf.Video.VideoURL, "video_url untouched")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data), "artifact must not be overwritten")
}

func TestPollAndSave_StatusCheckFailureIsContained(t *testing.T) {
	createdAt := time.Now().UTC()
	svc := &fakeService{
		getStatusFn: func(context.Context, videogen.Provider, string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{}, errors.New("connection refused")
		},
		openVideoFn: func(_ context.Context, _ videogen.Provider, videoURL string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("bytes")), nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	out, err := engine.PollAndSave(context.Background(), inProgressTree(createdAt))
	require.NoError(t, err, "a leaf failure must not fail the pass")

	leaf := out.Segments[0].GenerationResults[0]
	assert.Equal(t, videogen.StatusInProgress, leaf.Video.Status, "prior status kept")
	assert.Equal(t, "Status check failed: connection refused", leaf.Video.Error)

	// The already-completed sibling still gets its download.
	assert.Len(t, svc.opened(), 1)

	assert.Equal(t, StatusInProgress, out.Segments[0].Status)
	assert.Equal(t, StatusInProgress, out.Status)
}

func TestPollAndSave_DownloadFailureIsContained(t *testing.T) {
	createdAt := time.Now().UTC()
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
		},
		openVideoFn: func(context.Context, videogen.Provider, string) (io.ReadCloser, error) {
			return nil, errors.New("403 from CDN")
		},
	}
	engine, store := newTestEngine(t, svc)

	out, err := engine.PollAndSave(context.Background(), inProgressTree(createdAt))
	require.NoError(t, err)

	leaf := out.Segments[0].GenerationResults[1]
	assert.Equal(t, videogen.StatusCompleted, leaf.Video.Status, "completion is not revoked by a failed download")
	assert.Equal(t, "Download failed: 403 from CDN", leaf.Video.Error)
	assert.Equal(t, "https://cdn.example.com/op_b.mp4", leaf.Video.VideoURL, "video_url untouched")

	path := store.VideoPath("proj-1", 0, 1, "operations/op_b")
	assert.False(t, store.Exists(path))
}

func TestPollAndSave_TerminalLeavesNotPolled(t *testing.T) {
	svc := &fakeService{
		getStatusFn: func(context.Context, videogen.Provider, string) (videogen.GeneratedVideo, error) {
			t.Error("terminal leaves must not be polled")
			return videogen.GeneratedVideo{}, nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	tree := &VideoGenerations{
		ProjectID: "proj-1",
		Status:    StatusFailed,
		Segments: []SegmentGeneration{
			{
				SegmentIndex: 0,
				Status:       StatusFailed,
				GenerationResults: []videogen.GenerationResult{
					{
						InputIndex: 0,
						Provider:   videogen.ProviderSora,
						Video:      videogen.GeneratedVideo{ID: "v1", Status: videogen.StatusFailed, Error: "moderation"},
					},
				},
			},
		},
	}

	out, err := engine.PollAndSave(context.Background(), tree)
	require.NoError(t, err)
	assert.Empty(t, svc.polled())
	assert.Equal(t, StatusFailed, out.Status)
}

func TestSingleSoraInput_InitialTree(t *testing.T) {
	var gotDuration int
	svc := &fakeService{
		generateBatchFn: func(_ context.Context, inputs []videogen.BatchInput, cfg videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
			gotDuration = cfg.Duration
			return []videogen.GenerationResult{
				{
					InputIndex: 0,
					Provider:   videogen.ProviderSora,
					Video:      videogen.GeneratedVideo{ID: "video_1", Status: videogen.StatusQueued},
				},
			}, nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	proj := project.Project{
		AspectRatio: "9:16",
		Storyboard: project.Storyboard{
			Segments: []project.Segment{
				{
					SceneDescription: "only scene",
					Duration:         5,
					GenerationInputs: []project.GenerationInput{
						{Provider: "sora", Prompt: "hero shot"},
					},
				},
			},
		},
	}

	gens, err := engine.GenerateFromProject(context.Background(), "proj-1", proj)
	require.NoError(t, err)

	assert.Equal(t, 4, gotDuration, "duration 5 snaps to a supported value")

	require.Len(t, gens.Segments, 1)
	require.Len(t, gens.Segments[0].GenerationResults, 1)
	assert.Equal(t, videogen.StatusQueued, gens.Segments[0].GenerationResults[0].Video.Status)
	assert.Equal(t, StatusInProgress, gens.Segments[0].Status)
	assert.Equal(t, StatusInProgress, gens.Status)
}

func TestMixedSegmentStatuses_RootInProgress(t *testing.T) {
	// Segment 0: two queued leaves; segment 1: one completed; segment 2: one
	// queued. Root must be in_progress: not all completed, none failed.
	perSegment := [][]videogen.Status{
		{videogen.StatusQueued, videogen.StatusQueued},
		{videogen.StatusCompleted},
		{videogen.StatusQueued},
	}

	var mu sync.Mutex
	call := 0
	svc := &fakeService{
		generateBatchFn: func(_ context.Context, inputs []videogen.BatchInput, _ videogen.GenerationConfig) ([]videogen.GenerationResult, error) {
			mu.Lock()
			statuses := perSegment[call]
			call++
			mu.Unlock()

			out := make([]videogen.GenerationResult, len(inputs))
			for i, in := range inputs {
				out[i] = videogen.GenerationResult{
					InputIndex: in.InputIndex,
					Provider:   in.Request.Provider(),
					Video:      videogen.GeneratedVideo{ID: "v", Status: statuses[i]},
				}
			}
			return out, nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	proj := project.Project{Storyboard: project.Storyboard{Segments: []project.Segment{
		{Duration: 4, GenerationInputs: []project.GenerationInput{
			{Provider: "veo", Prompt: "a"}, {Provider: "veo", Prompt: "b"},
		}},
		{Duration: 4, GenerationInputs: []project.GenerationInput{{Provider: "veo", Prompt: "c"}}},
		{Duration: 4, GenerationInputs: []project.GenerationInput{{Provider: "veo", Prompt: "d"}}},
	}}}

	gens, err := engine.GenerateFromProject(context.Background(), "proj-1", proj)
	require.NoError(t, err)

	require.Len(t, gens.Segments, 3)
	assert.Equal(t, StatusInProgress, gens.Segments[0].Status)
	assert.Equal(t, StatusCompleted, gens.Segments[1].Status)
	assert.Equal(t, StatusInProgress, gens.Segments[2].Status)
	assert.Equal(t, StatusInProgress, gens.Status)
}

func TestPollAndSave_IndexStabilityAcrossPasses(t *testing.T) {
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
		},
		openVideoFn: func(context.Context, videogen.Provider, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("x")), nil
		},
	}
	engine, _ := newTestEngine(t, svc)

	tree := inProgressTree(time.Now().UTC())
	for range 3 {
		out, err := engine.PollAndSave(context.Background(), tree)
		require.NoError(t, err)

		require.Len(t, out.Segments, 1)
		assert.Equal(t, 0, out.Segments[0].SegmentIndex)
		require.Len(t, out.Segments[0].GenerationResults, 2)
		assert.Equal(t, 0, out.Segments[0].GenerationResults[0].InputIndex)
		assert.Equal(t, 1, out.Segments[0].GenerationResults[1].InputIndex)
		tree = out
	}
}

func awaitTree() *VideoGenerations {
	return &VideoGenerations{
		ProjectID: "proj-1",
		Status:    StatusInProgress,
		Segments: []SegmentGeneration{
			{
				SegmentIndex: 0,
				Status:       StatusInProgress,
				GenerationResults: []videogen.GenerationResult{
					{
						InputIndex: 0,
						Provider:   videogen.ProviderSora,
						Video:      videogen.GeneratedVideo{ID: "video_a", Status: videogen.StatusInProgress},
					},
				},
			},
		},
	}
}

func TestAwaitCompletion_PollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			if polls.Add(1) < 3 {
				return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
			}
			return videogen.GeneratedVideo{
				ID:       videoID,
				Status:   videogen.StatusCompleted,
				VideoURL: "https://cdn.example.com/" + videoID + ".mp4",
			}, nil
		},
		openVideoFn: func(context.Context, videogen.Provider, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("bytes")), nil
		},
	}

	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(svc, store, logger, WithPollSettings(time.Millisecond, time.Second))

	out, err := engine.AwaitCompletion(context.Background(), awaitTree())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, int32(3), polls.Load(), "one poll per pass until terminal")
	assert.True(t, store.Exists(store.VideoPath("proj-1", 0, 0, "video_a")))
}

func TestAwaitCompletion_TimeoutReturnsLatestTree(t *testing.T) {
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
		},
	}

	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(svc, store, logger, WithPollSettings(10*time.Millisecond, 25*time.Millisecond))

	out, err := engine.AwaitCompletion(context.Background(), awaitTree())
	require.NoError(t, err, "hitting the deadline is not an error")
	assert.Equal(t, StatusInProgress, out.Status)
}

func TestAwaitCompletion_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{
		getStatusFn: func(_ context.Context, _ videogen.Provider, videoID string) (videogen.GeneratedVideo, error) {
			cancel()
			return videogen.GeneratedVideo{ID: videoID, Status: videogen.StatusInProgress}, nil
		},
	}

	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(svc, store, logger, WithPollSettings(time.Millisecond, time.Minute))

	_, err = engine.AwaitCompletion(ctx, awaitTree())
	assert.ErrorIs(t, err, context.Canceled)
}
