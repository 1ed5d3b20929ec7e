// Package videogen provides the canonical request/response model for
// multi-provider AI video generation, the per-provider adapter contract,
// and a service façade that routes requests to the right provider.
package videogen

import "time"

// Provider identifies a video generation provider.
type Provider string

const (
	// ProviderSora is the cinematic provider (OpenAI Sora API).
	ProviderSora Provider = "sora"
	// ProviderVeo is the stylized provider (Google Veo API).
	ProviderVeo Provider = "veo"
)

// IsValid returns true if the provider is a known provider tag.
func (p Provider) IsValid() bool {
	return p == ProviderSora || p == ProviderVeo
}

// Status represents the lifecycle state of a single generated video.
// queued and in_progress are non-terminal; completed and failed are
// terminal and never transition further.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Allowed image MIME types for inline image payloads.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

// ImageInput is an image supplied to a generation request, either as a
// remote URL or as an inline base64 payload with its MIME type. Exactly
// one representation must be present.
type ImageInput struct {
	// URL is a remote location of the image (https:// or gs://).
	URL string `json:"url,omitempty"`
	// Base64 is the base64-encoded image data.
	Base64 string `json:"base64,omitempty"`
	// MimeType is required when Base64 is set (jpeg, png or webp).
	MimeType string `json:"mime_type,omitempty"`
}

// Validate checks that exactly one representation is present and that
// inline payloads carry an allowed MIME type.
func (i ImageInput) Validate() error {
	switch {
	case i.URL != "" && i.Base64 != "":
		return &ConfigError{Detail: "image must have url or base64, not both"}
	case i.URL == "" && i.Base64 == "":
		return &ConfigError{Detail: "image must have url or base64+mime_type"}
	case i.Base64 != "":
		switch i.MimeType {
		case MimeJPEG, MimePNG, MimeWebP:
		default:
			return &ConfigError{Detail: "unsupported image mime type: " + i.MimeType}
		}
	}
	return nil
}

// MaxPromptLen bounds prompt length for all providers.
const MaxPromptLen = 4096

// MaxReferenceImages bounds the reference image list for providers that
// support subject/style conditioning.
const MaxReferenceImages = 3

// Request is the tagged union of provider-specific generation requests.
// It is a sealed interface: only SoraRequest and VeoRequest implement it,
// so adapter and translator dispatch is exhaustive at compile time.
type Request interface {
	// Provider returns the provider tag of this request.
	Provider() Provider

	isGenerationRequest()
}

// SoraRequest is a generation request for the Sora provider.
type SoraRequest struct {
	// Model is the Sora model identifier (default sora-2).
	Model string `json:"model,omitempty"`
	// Prompt is the text description for the model.
	Prompt string `json:"prompt"`
	// InputImage is the optional first frame / starting image.
	InputImage *ImageInput `json:"input_image,omitempty"`
}

// Provider returns ProviderSora.
func (SoraRequest) Provider() Provider { return ProviderSora }

func (SoraRequest) isGenerationRequest() {}

// VeoRequest is a generation request for the Veo provider.
type VeoRequest struct {
	// Model is the Veo model identifier (default veo-3.1-generate-preview).
	Model string `json:"model,omitempty"`
	// Prompt is the text description for the model.
	Prompt string `json:"prompt"`
	// NegativePrompt describes what NOT to include.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// InputImage is the optional first frame / starting image.
	InputImage *ImageInput `json:"input_image,omitempty"`
	// ReferenceImages are subject/character reference images (max 3).
	ReferenceImages []ImageInput `json:"reference_images,omitempty"`
	// NumOutputs is the number of videos to generate (1-4).
	NumOutputs int `json:"num_outputs,omitempty"`
}

// Provider returns ProviderVeo.
func (VeoRequest) Provider() Provider { return ProviderVeo }

func (VeoRequest) isGenerationRequest() {}

// AspectRatio is the target video aspect ratio.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// IsValid returns true for one of the two supported aspect ratios.
func (a AspectRatio) IsValid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

// ResolutionDefault is the single supported output resolution.
const ResolutionDefault = "720p"

// GenerationConfig carries the provider-agnostic generation parameters.
// Each provider snaps Duration to its own supported discrete set.
type GenerationConfig struct {
	// Duration is the requested video length in seconds.
	Duration int `json:"duration"`
	// AspectRatio is 16:9 or 9:16.
	AspectRatio AspectRatio `json:"aspect_ratio"`
	// Resolution is fixed at 720p in this design.
	Resolution string `json:"resolution"`
}

// DefaultConfig returns the default generation configuration:
// 8 seconds, portrait, 720p.
func DefaultConfig() GenerationConfig {
	return GenerationConfig{
		Duration:    8,
		AspectRatio: AspectPortrait,
		Resolution:  ResolutionDefault,
	}
}

// withDefaults fills zero-valued fields with defaults.
func (c GenerationConfig) withDefaults() GenerationConfig {
	d := DefaultConfig()
	if c.Duration == 0 {
		c.Duration = d.Duration
	}
	if c.AspectRatio == "" {
		c.AspectRatio = d.AspectRatio
	}
	if c.Resolution == "" {
		c.Resolution = d.Resolution
	}
	return c
}

// GeneratedVideo is the canonical provider-agnostic result record.
type GeneratedVideo struct {
	// ID is the provider-assigned opaque identifier, used as the
	// idempotency key across polls.
	ID string `json:"id"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Progress is 0-100, only meaningful while non-terminal.
	Progress int `json:"progress,omitempty"`
	// CreatedAt is set once when generation starts and never mutated.
	CreatedAt time.Time `json:"created_at"`
	// VideoURL is the provider-hosted download URL, set when completed.
	VideoURL string `json:"video_url,omitempty"`
	// Duration is the video length in seconds.
	Duration int `json:"duration,omitempty"`
	// Resolution is the output resolution string.
	Resolution string `json:"resolution,omitempty"`
	// HasAudio reports whether the video contains an audio track.
	HasAudio bool `json:"has_audio,omitempty"`
	// Error holds the failure reason when Status is failed, or advisory
	// detail when a side operation (status check, download) failed while
	// the generation itself is still pending or succeeded.
	Error string `json:"error,omitempty"`
}

// GenerationResult binds a generated video back to its position in the
// originating request list. InputIndex is assigned at translation time
// and never reassigned.
type GenerationResult struct {
	InputIndex int            `json:"input_index"`
	Provider   Provider       `json:"provider"`
	Video      GeneratedVideo `json:"video"`
}

// SnapDuration returns the value in supported closest to d by absolute
// difference. When two values are equidistant the smaller one wins.
// supported must be non-empty and sorted ascending.
func SnapDuration(d int, supported []int) int {
	best := supported[0]
	for _, s := range supported[1:] {
		if abs(s-d) < abs(best-d) {
			best = s
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
