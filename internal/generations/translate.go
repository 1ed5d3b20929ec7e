package generations

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ovenai/adstudio-api/internal/project"
	"github.com/ovenai/adstudio-api/internal/videogen"
)

// storyboardDurations is the duration set segment durations are snapped
// to before provider dispatch. Each provider snaps again to its own set.
var storyboardDurations = []int{4, 6, 8}

// configForSegment builds the provider-agnostic config for one segment:
// the segment duration rounded then snapped to the storyboard set, and
// the project aspect ratio with portrait as the fallback.
func configForSegment(aspectRatio string, duration float64) videogen.GenerationConfig {
	aspect := videogen.AspectRatio(aspectRatio)
	if !aspect.IsValid() {
		aspect = videogen.AspectPortrait
	}
	return videogen.GenerationConfig{
		Duration:    videogen.SnapDuration(int(math.Round(duration)), storyboardDurations),
		AspectRatio: aspect,
		Resolution:  videogen.ResolutionDefault,
	}
}

// requestForInput translates one storyboard generation input into a
// provider request. Unrecognized provider tags fall back to veo so a
// stale storyboard never aborts the whole project.
func requestForInput(in project.GenerationInput) (videogen.Request, error) {
	inputImage, err := imageFromPath(in.InputImagePath)
	if err != nil {
		return nil, fmt.Errorf("input image: %w", err)
	}

	switch videogen.Provider(in.Provider) {
	case videogen.ProviderSora:
		return videogen.SoraRequest{
			Prompt:     in.Prompt,
			InputImage: inputImage,
		}, nil
	case videogen.ProviderVeo:
		refs, err := referenceImages(in.ReferenceImagePaths)
		if err != nil {
			return nil, err
		}
		return videogen.VeoRequest{
			Prompt:          in.Prompt,
			NegativePrompt:  in.NegativePrompt,
			InputImage:      inputImage,
			ReferenceImages: refs,
		}, nil
	default:
		return videogen.VeoRequest{
			Prompt:         in.Prompt,
			NegativePrompt: in.NegativePrompt,
			InputImage:     inputImage,
		}, nil
	}
}

func referenceImages(paths []string) ([]videogen.ImageInput, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	refs := make([]videogen.ImageInput, 0, len(paths))
	for _, p := range paths {
		img, err := imageFromPath(p)
		if err != nil {
			return nil, fmt.Errorf("reference image: %w", err)
		}
		refs = append(refs, *img)
	}
	return refs, nil
}

// imageFromPath loads a local image file as an inline base64 payload.
// Remote URLs (http, https, gs) pass through as URL images. An empty
// path yields nil.
func imageFromPath(path string) (*videogen.ImageInput, error) {
	if path == "" {
		return nil, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "gs://") {
		return &videogen.ImageInput{URL: path}, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the approved storyboard
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return &videogen.ImageInput{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: mimeForExtension(path),
	}, nil
}

func mimeForExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return videogen.MimePNG
	case ".webp":
		return videogen.MimeWebP
	default:
		return videogen.MimeJPEG
	}
}
