// Package project defines the storyboard domain model handed over by the
// conversational agent once the user approves a storyboard. It is pure
// data; translation to provider requests lives in internal/generations.
package project

// Project is a user-approved video ad project: metadata plus the
// storyboard to generate.
type Project struct {
	// Title is the project title.
	Title string `json:"title"`
	// Description summarizes the ad concept.
	Description string `json:"description,omitempty"`
	// AspectRatio is the target aspect ratio for all segments. Values
	// other than 16:9 or 9:16 fall back to portrait at translation time.
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// TotalDuration is the target total duration in seconds.
	TotalDuration float64 `json:"total_duration,omitempty"`
	// Storyboard is the ordered list of scene segments.
	Storyboard Storyboard `json:"storyboard" validate:"required"`
}

// Storyboard is the ordered list of scene segments. Segment order is
// significant: a segment's position becomes its stable segment index.
type Storyboard struct {
	Segments []Segment `json:"segments" validate:"required,dive"`
}

// Segment is a single scene in the storyboard.
type Segment struct {
	// SceneDescription describes what happens in this segment.
	SceneDescription string `json:"scene_description"`
	// Duration is the target duration in seconds; it is snapped to the
	// nearest provider-supported value at translation time.
	Duration float64 `json:"duration"`
	// GenerationInputs are the per-provider generation configurations
	// for this segment. Input order is significant: a generation input's
	// position becomes its stable input index.
	GenerationInputs []GenerationInput `json:"generation_inputs" validate:"dive"`
}

// GenerationInput is one generation configuration within a segment.
type GenerationInput struct {
	// Provider selects the video generation provider ("sora" or "veo").
	// Unrecognized values fall back to veo at translation time.
	Provider string `json:"provider"`
	// Prompt is the generation prompt.
	Prompt string `json:"prompt" validate:"required,max=4096"`
	// NegativePrompt describes what NOT to include (veo only).
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// InputImagePath is a local file path to the first-frame image for
	// image-to-video generation.
	InputImagePath string `json:"input_image_path,omitempty"`
	// ReferenceImagePaths are local file paths to subject/style
	// reference images (veo only, max 3).
	ReferenceImagePaths []string `json:"reference_image_paths,omitempty" validate:"max=3"`
}
