package generations

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenai/adstudio-api/internal/project"
	"github.com/ovenai/adstudio-api/internal/videogen"
)

func TestConfigForSegment(t *testing.T) {
	tests := []struct {
		name         string
		aspect       string
		duration     float64
		wantDuration int
		wantAspect   videogen.AspectRatio
	}{
		{"exact duration", "16:9", 6, 6, videogen.AspectLandscape},
		{"rounds then snaps", "9:16", 5.4, 4, videogen.AspectPortrait},
		{"rounds up to supported", "9:16", 5.6, 6, videogen.AspectPortrait},
		{"clamps long scenes", "16:9", 30, 8, videogen.AspectLandscape},
		{"clamps short scenes", "16:9", 0.5, 4, videogen.AspectLandscape},
		{"unknown aspect falls back to portrait", "4:3", 8, 8, videogen.AspectPortrait},
		{"empty aspect falls back to portrait", "", 8, 8, videogen.AspectPortrait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configForSegment(tt.aspect, tt.duration)
			assert.Equal(t, tt.wantDuration, cfg.Duration)
			assert.Equal(t, tt.wantAspect, cfg.AspectRatio)
			assert.Equal(t, videogen.ResolutionDefault, cfg.Resolution)
		})
	}
}

func TestRequestForInput(t *testing.T) {
	t.Run("sora input", func(t *testing.T) {
		req, err := requestForInput(project.GenerationInput{
			Provider: "sora",
			Prompt:   "a cinematic shot",
		})
		require.NoError(t, err)

		soraReq, ok := req.(videogen.SoraRequest)
		require.True(t, ok)
		assert.Equal(t, "a cinematic shot", soraReq.Prompt)
		assert.Nil(t, soraReq.InputImage)
	})

	t.Run("veo input with negative prompt", func(t *testing.T) {
		req, err := requestForInput(project.GenerationInput{
			Provider:       "veo",
			Prompt:         "stylized product reveal",
			NegativePrompt: "text overlays",
		})
		require.NoError(t, err)

		veoReq, ok := req.(videogen.VeoRequest)
		require.True(t, ok)
		assert.Equal(t, "stylized product reveal", veoReq.Prompt)
		assert.Equal(t, "text overlays", veoReq.NegativePrompt)
	})

	t.Run("unknown provider falls back to veo", func(t *testing.T) {
		req, err := requestForInput(project.GenerationInput{
			Provider: "kling",
			Prompt:   "anything",
		})
		require.NoError(t, err)

		_, ok := req.(videogen.VeoRequest)
		assert.True(t, ok)
		assert.Equal(t, videogen.ProviderVeo, req.Provider())
	})

	t.Run("remote image paths pass through as URLs", func(t *testing.T) {
		req, err := requestForInput(project.GenerationInput{
			Provider:       "veo",
			Prompt:         "x",
			InputImagePath: "https://cdn.example.com/frame.jpg",
			ReferenceImagePaths: []string{
				"gs://bucket/ref.png",
			},
		})
		require.NoError(t, err)

		veoReq := req.(videogen.VeoRequest)
		require.NotNil(t, veoReq.InputImage)
		assert.Equal(t, "https://cdn.example.com/frame.jpg", veoReq.InputImage.URL)
		require.Len(t, veoReq.ReferenceImages, 1)
		assert.Equal(t, "gs://bucket/ref.png", veoReq.ReferenceImages[0].URL)
	})

	t.Run("missing local image file fails", func(t *testing.T) {
		_, err := requestForInput(project.GenerationInput{
			Provider:       "sora",
			Prompt:         "x",
			InputImagePath: filepath.Join(t.TempDir(), "missing.jpg"),
		})
		require.Error(t, err)
	})
}

func TestImageFromPath_LocalFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte{0x89, 0x50, 0x4E, 0x47}

	tests := []struct {
		filename string
		wantMime string
	}{
		{"frame.png", videogen.MimePNG},
		{"frame.PNG", videogen.MimePNG},
		{"frame.webp", videogen.MimeWebP},
		{"frame.jpg", videogen.MimeJPEG},
		{"frame.jpeg", videogen.MimeJPEG},
		{"frame", videogen.MimeJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			path := filepath.Join(dir, tt.filename)
			require.NoError(t, os.WriteFile(path, content, 0600))

			img, err := imageFromPath(path)
			require.NoError(t, err)
			require.NotNil(t, img)

			assert.Equal(t, base64.StdEncoding.EncodeToString(content), img.Base64)
			assert.Equal(t, tt.wantMime, img.MimeType)
			assert.Empty(t, img.URL)
		})
	}
}

func TestImageFromPath_Empty(t *testing.T) {
	img, err := imageFromPath("")
	require.NoError(t, err)
	assert.Nil(t, img)
}
