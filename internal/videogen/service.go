package videogen

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Credentials carries the provider API keys used for lazy adapter
// construction.
type Credentials struct {
	// SoraAPIKey authenticates against the Sora API.
	SoraAPIKey string
	// VeoAPIKey authenticates against the Veo API.
	VeoAPIKey string
}

// ProviderFactory builds a provider adapter from credentials. The
// service uses one factory per provider tag; tests swap factories or
// pre-register adapters with WithProvider.
type ProviderFactory func(creds Credentials) (VideoProvider, error)

// Service is the single façade over all provider adapters. Adapters are
// constructed lazily on first use and cached for the service's lifetime:
// one adapter instance per provider, reused across all calls.
type Service struct {
	mu        sync.Mutex
	providers map[Provider]VideoProvider
	factories map[Provider]ProviderFactory
	creds     Credentials
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProvider pre-registers an adapter, bypassing lazy construction.
func WithProvider(p VideoProvider) ServiceOption {
	return func(s *Service) {
		s.providers[p.Name()] = p
	}
}

// WithProviderFactory overrides the constructor for a provider tag.
func WithProviderFactory(name Provider, f ProviderFactory) ServiceOption {
	return func(s *Service) {
		s.factories[name] = f
	}
}

// NewService creates a Service. Adapter construction is deferred until
// the first request for each provider, so a missing credential only
// fails calls that actually need that provider.
func NewService(creds Credentials, opts ...ServiceOption) *Service {
	s := &Service{
		providers: make(map[Provider]VideoProvider),
		factories: make(map[Provider]ProviderFactory),
		creds:     creds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// provider resolves a provider tag to its cached adapter, constructing
// it on first use.
func (s *Service) provider(name Provider) (VideoProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[name]; ok {
		return p, nil
	}

	factory, ok := s.factories[name]
	if !ok {
		return nil, &ConfigError{Provider: name, Detail: "unknown video provider"}
	}
	p, err := factory(s.creds)
	if err != nil {
		return nil, err
	}
	s.providers[name] = p
	return p, nil
}

// Generate routes the request to its provider's adapter. Zero-valued
// config fields are filled with defaults.
func (s *Service) Generate(ctx context.Context, req Request, cfg GenerationConfig) (GeneratedVideo, error) {
	p, err := s.provider(req.Provider())
	if err != nil {
		return GeneratedVideo{}, err
	}
	return p.Generate(ctx, req, cfg.withDefaults())
}

// BatchInput pairs a request with its stable position in the originating
// input list.
type BatchInput struct {
	Request    Request
	InputIndex int
}

// GenerateBatch fans out Generate concurrently across all inputs,
// preserving each result's originating index. If any generation fails
// the whole batch fails; callers needing partial-failure tolerance keep
// their batches small (the orchestrator batches per segment for exactly
// this reason).
func (s *Service) GenerateBatch(ctx context.Context, inputs []BatchInput, cfg GenerationConfig) ([]GenerationResult, error) {
	cfg = cfg.withDefaults()
	results := make([]GenerationResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		g.Go(func() error {
			video, err := s.Generate(ctx, in.Request, cfg)
			if err != nil {
				return fmt.Errorf("generate input %d: %w", in.InputIndex, err)
			}
			results[i] = GenerationResult{
				InputIndex: in.InputIndex,
				Provider:   in.Request.Provider(),
				Video:      video,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetStatus passes a single status poll through to the resolved adapter.
func (s *Service) GetStatus(ctx context.Context, provider Provider, videoID string) (GeneratedVideo, error) {
	p, err := s.provider(provider)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return p.GetStatus(ctx, videoID)
}

// GetVideoURL passes through to the resolved adapter.
func (s *Service) GetVideoURL(ctx context.Context, provider Provider, videoID string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.GetVideoURL(ctx, videoID)
}

// OpenVideo opens video content through the resolved adapter so that
// provider-specific content auth is attached.
func (s *Service) OpenVideo(ctx context.Context, provider Provider, videoURL string) (io.ReadCloser, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	return p.OpenVideo(ctx, videoURL)
}

// WaitForCompletion blocks until the video is terminal or the timeout
// elapses. Not used by the reconciliation path.
func (s *Service) WaitForCompletion(ctx context.Context, provider Provider, videoID string, pollInterval, timeout time.Duration) (GeneratedVideo, error) {
	p, err := s.provider(provider)
	if err != nil {
		return GeneratedVideo{}, err
	}
	return WaitForCompletion(ctx, p, videoID, pollInterval, timeout)
}

// BatchVideo identifies one in-flight video to wait for.
type BatchVideo struct {
	Provider   Provider
	VideoID    string
	InputIndex int
}

// WaitForBatch fans out WaitForCompletion concurrently. Convenience path
// only; the reconciliation engine uses single-poll passes instead.
func (s *Service) WaitForBatch(ctx context.Context, videos []BatchVideo, pollInterval, timeout time.Duration) ([]GenerationResult, error) {
	results := make([]GenerationResult, len(videos))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range videos {
		g.Go(func() error {
			video, err := s.WaitForCompletion(ctx, v.Provider, v.VideoID, pollInterval, timeout)
			if err != nil {
				return fmt.Errorf("wait for %s: %w", v.VideoID, err)
			}
			results[i] = GenerationResult{
				InputIndex: v.InputIndex,
				Provider:   v.Provider,
				Video:      video,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
