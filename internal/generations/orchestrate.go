package generations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ovenai/adstudio-api/internal/artifact"
	"github.com/ovenai/adstudio-api/internal/project"
	"github.com/ovenai/adstudio-api/internal/videogen"
)

// GenerationService is the slice of the videogen façade the engine
// needs. *videogen.Service satisfies it; tests substitute a mock.
type GenerationService interface {
	GenerateBatch(ctx context.Context, inputs []videogen.BatchInput, cfg videogen.GenerationConfig) ([]videogen.GenerationResult, error)
	GetStatus(ctx context.Context, provider videogen.Provider, videoID string) (videogen.GeneratedVideo, error)
	OpenVideo(ctx context.Context, provider videogen.Provider, videoURL string) (io.ReadCloser, error)
}

// Engine submits storyboard projects for generation and reconciles
// generation trees against live provider state.
type Engine struct {
	svc          GenerationService
	store        artifact.Store
	logger       *slog.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPollSettings sets the interval between reconciliation passes and
// the overall deadline used by AwaitCompletion.
func WithPollSettings(interval, timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.pollInterval = interval
		}
		if timeout > 0 {
			e.pollTimeout = timeout
		}
	}
}

// NewEngine creates an Engine. logger may not be nil.
func NewEngine(svc GenerationService, store artifact.Store, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		svc:          svc,
		store:        store,
		logger:       logger,
		pollInterval: 5 * time.Second,
		pollTimeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateFromProject submits every generation input of every storyboard
// segment and returns the initial generation tree. Submission is
// all-or-nothing per project: any provider rejection aborts the call.
// Segment and input indices in the returned tree are list positions and
// stay stable for the lifetime of the tree.
func (e *Engine) GenerateFromProject(ctx context.Context, projectID string, proj project.Project) (*VideoGenerations, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339)

	segments := make([]SegmentGeneration, 0, len(proj.Storyboard.Segments))
	for segmentIndex, seg := range proj.Storyboard.Segments {
		cfg := configForSegment(proj.AspectRatio, seg.Duration)

		inputs := make([]videogen.BatchInput, 0, len(seg.GenerationInputs))
		for inputIndex, genInput := range seg.GenerationInputs {
			req, err := requestForInput(genInput)
			if err != nil {
				return nil, fmt.Errorf("segment %d input %d: %w", segmentIndex, inputIndex, err)
			}
			inputs = append(inputs, videogen.BatchInput{Request: req, InputIndex: inputIndex})
		}

		var results []videogen.GenerationResult
		if len(inputs) > 0 {
			var err error
			results, err = e.svc.GenerateBatch(ctx, inputs, cfg)
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", segmentIndex, err)
			}
		}

		e.logger.Info("segment submitted",
			"project_id", projectID,
			"segment_index", segmentIndex,
			"inputs", len(inputs),
			"duration", cfg.Duration,
			"aspect_ratio", cfg.AspectRatio,
		)

		segments = append(segments, SegmentGeneration{
			SegmentIndex:      segmentIndex,
			SceneDescription:  seg.SceneDescription,
			Status:            deriveResultsStatus(results),
			GenerationResults: results,
		})
	}

	return &VideoGenerations{
		ProjectID: projectID,
		CreatedAt: createdAt,
		Status:    deriveSegmentsStatus(segments),
		Segments:  segments,
	}, nil
}
