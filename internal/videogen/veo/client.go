// Package veo implements the videogen.VideoProvider contract on top of
// the Google Veo API. Generation is a long-running operation: the
// creation call returns an opaque operation name which is then polled
// until the operation reports done. Completed videos expose a direct
// content URI that needs no extra auth to fetch.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ovenai/adstudio-api/internal/videogen"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Durations supported by Veo, in seconds.
var supportedDurations = []int{4, 6, 8}

const defaultModel = "veo-3.1-generate-preview"

// Veo always generates an audio track in this configuration.
const generateAudio = true

// maxNumOutputs bounds the per-request sample count.
const maxNumOutputs = 4

// Client is the Veo provider adapter.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom base URL for the Veo API.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Veo client. The API key can be set via WithAPIKey; if
// not provided it is read from GOOGLE_API_KEY. A missing key fails fast
// with an authentication error.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.apiKey == "" {
		return nil, &videogen.AuthError{
			Provider: videogen.ProviderVeo,
			Detail:   "GOOGLE_API_KEY environment variable not set",
		}
	}
	return c, nil
}

// Name returns the provider tag.
func (c *Client) Name() videogen.Provider { return videogen.ProviderVeo }

// imagePayload is Veo's image representation: either a GCS URI or
// inline bytes with a MIME type.
type imagePayload struct {
	GCSURI             string `json:"gcsUri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

// generateRequest is the predictLongRunning request body.
type generateRequest struct {
	Instances  []generateInstance `json:"instances"`
	Parameters generateParameters `json:"parameters"`
}

type generateInstance struct {
	Prompt string        `json:"prompt"`
	Image  *imagePayload `json:"image,omitempty"`
}

type generateParameters struct {
	AspectRatio     string           `json:"aspectRatio"`
	DurationSeconds int              `json:"durationSeconds"`
	NegativePrompt  string           `json:"negativePrompt,omitempty"`
	SampleCount     int              `json:"sampleCount"`
	GenerateAudio   bool             `json:"generateAudio"`
	ReferenceImages []referenceImage `json:"referenceImages,omitempty"`
}

type referenceImage struct {
	Image         imagePayload `json:"image"`
	ReferenceType string       `json:"referenceType"`
}

// operationResponse is the long-running operation envelope returned by
// both the creation call and subsequent polls.
type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// Generate starts a long-running generation operation and returns a
// non-terminal record keyed by the operation name. The creation
// timestamp is carried on the record itself; later polls must not be
// relied on to reconstruct it.
func (c *Client) Generate(ctx context.Context, req videogen.Request, cfg videogen.GenerationConfig) (videogen.GeneratedVideo, error) {
	veoReq, ok := req.(videogen.VeoRequest)
	if !ok {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("unsupported request type for provider %s", req.Provider()),
		}
	}
	if veoReq.Prompt == "" || len(veoReq.Prompt) > videogen.MaxPromptLen {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("prompt must be 1-%d characters", videogen.MaxPromptLen),
		}
	}
	if !cfg.AspectRatio.IsValid() {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("unsupported aspect ratio: %s", cfg.AspectRatio),
		}
	}
	if len(veoReq.ReferenceImages) > videogen.MaxReferenceImages {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("at most %d reference images are supported", videogen.MaxReferenceImages),
		}
	}

	numOutputs := veoReq.NumOutputs
	if numOutputs <= 0 {
		numOutputs = 1
	}
	if numOutputs > maxNumOutputs {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("num_outputs must be 1-%d", maxNumOutputs),
		}
	}

	instance := generateInstance{Prompt: veoReq.Prompt}
	if veoReq.InputImage != nil {
		img, err := c.buildImage(ctx, *veoReq.InputImage)
		if err != nil {
			return videogen.GeneratedVideo{}, err
		}
		instance.Image = &img
	}

	params := generateParameters{
		AspectRatio:     string(cfg.AspectRatio),
		DurationSeconds: videogen.SnapDuration(cfg.Duration, supportedDurations),
		NegativePrompt:  veoReq.NegativePrompt,
		SampleCount:     numOutputs,
		GenerateAudio:   generateAudio,
	}
	for _, ref := range veoReq.ReferenceImages {
		img, err := c.buildImage(ctx, ref)
		if err != nil {
			return videogen.GeneratedVideo{}, err
		}
		params.ReferenceImages = append(params.ReferenceImages, referenceImage{
			Image:         img,
			ReferenceType: "asset",
		})
	}

	model := veoReq.Model
	if model == "" {
		model = defaultModel
	}
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, model)

	var op operationResponse
	if err := c.doJSON(ctx, http.MethodPost, url, generateRequest{
		Instances:  []generateInstance{instance},
		Parameters: params,
	}, &op, ""); err != nil {
		return videogen.GeneratedVideo{}, err
	}
	if op.Name == "" {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   "no operation name returned",
		}
	}

	return videogen.GeneratedVideo{
		ID:        op.Name,
		Status:    videogen.StatusInProgress,
		CreatedAt: time.Now().UTC(),
		HasAudio:  generateAudio,
	}, nil
}

// buildImage converts an ImageInput to Veo's representation. The API
// accepts gs:// URIs directly; any other remote URL is fetched and
// re-encoded to inline bytes before submission.
func (c *Client) buildImage(ctx context.Context, image videogen.ImageInput) (imagePayload, error) {
	if err := image.Validate(); err != nil {
		return imagePayload{}, err
	}

	if image.Base64 != "" {
		return imagePayload{
			BytesBase64Encoded: image.Base64,
			MimeType:           image.MimeType,
		}, nil
	}
	if strings.HasPrefix(image.URL, "gs://") {
		return imagePayload{GCSURI: image.URL}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, image.URL, nil)
	if err != nil {
		return imagePayload{}, fmt.Errorf("veo: create image fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return imagePayload{}, &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("fetch input image: %v", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return imagePayload{}, &videogen.RequestError{
			Provider:   videogen.ProviderVeo,
			StatusCode: resp.StatusCode,
			Detail:     "fetch input image",
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return imagePayload{}, fmt.Errorf("veo: read input image: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = videogen.MimeJPEG
	}
	return imagePayload{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(data),
		MimeType:           mimeType,
	}, nil
}

// GetStatus polls the long-running operation by name. The returned
// record's CreatedAt is a best-effort current timestamp; callers that
// hold the original record preserve its creation time when merging.
func (c *Client) GetStatus(ctx context.Context, videoID string) (videogen.GeneratedVideo, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(videoID, "/"))

	var op operationResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &op, videoID); err != nil {
		return videogen.GeneratedVideo{}, err
	}
	return c.toGeneratedVideo(videoID, op), nil
}

// GetVideoURL returns the content URI for a completed operation.
func (c *Client) GetVideoURL(ctx context.Context, videoID string) (string, error) {
	video, err := c.GetStatus(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video.Status != videogen.StatusCompleted {
		return "", &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("video is not completed (status: %s)", video.Status),
		}
	}
	if video.VideoURL == "" {
		return "", &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   "video URL not available",
		}
	}
	return video.VideoURL, nil
}

// OpenVideo fetches video content. Veo content URIs are directly
// fetchable once the operation completes.
func (c *Client) OpenVideo(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("download request failed: %v", err),
		}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &videogen.RequestError{
			Provider:   videogen.ProviderVeo,
			StatusCode: resp.StatusCode,
			Detail:     "download failed",
		}
	}
	return resp.Body, nil
}

// doJSON performs one JSON request/response exchange and maps non-2xx
// responses to the error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, url string, payload, result any, videoID string) error {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("veo: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   err.Error(),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("read response: %v", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &videogen.AuthError{Provider: videogen.ProviderVeo, Detail: string(body)}
		case http.StatusNotFound:
			if videoID != "" {
				return &videogen.NotFoundError{Provider: videogen.ProviderVeo, VideoID: videoID}
			}
		}
		return &videogen.RequestError{
			Provider:   videogen.ProviderVeo,
			StatusCode: resp.StatusCode,
			Detail:     string(body),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &videogen.RequestError{
			Provider: videogen.ProviderVeo,
			Detail:   fmt.Sprintf("unmarshal response: %v", err),
		}
	}
	return nil
}

// toGeneratedVideo normalizes an operation poll into the canonical
// record: done+error is failed, done with a sample URI is completed,
// anything else is still in progress.
func (c *Client) toGeneratedVideo(videoID string, op operationResponse) videogen.GeneratedVideo {
	video := videogen.GeneratedVideo{
		ID:        videoID,
		Status:    videogen.StatusInProgress,
		CreatedAt: time.Now().UTC(),
		HasAudio:  generateAudio,
	}

	if !op.Done {
		return video
	}
	if op.Error != nil {
		video.Status = videogen.StatusFailed
		video.Error = op.Error.Message
		return video
	}
	if op.Response != nil {
		samples := op.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 && samples[0].Video.URI != "" {
			video.Status = videogen.StatusCompleted
			video.VideoURL = samples[0].Video.URI
			video.Resolution = videogen.ResolutionDefault
			return video
		}
	}
	return video
}

// Compile-time check that Client implements the provider contract.
var _ videogen.VideoProvider = (*Client)(nil)
