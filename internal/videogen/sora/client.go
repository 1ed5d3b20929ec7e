// Package sora implements the videogen.VideoProvider contract on top of
// the OpenAI Sora video API: JSON or multipart creation call, GET-by-id
// status polls, and an authenticated content URL for downloads.
package sora

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ovenai/adstudio-api/internal/videogen"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Durations supported by Sora, in seconds.
var supportedDurations = []int{4, 8, 12}

// sizeMap resolves (aspect ratio, resolution) to Sora's native size
// string. Combinations outside this map are configuration errors.
var sizeMap = map[[2]string]string{
	{"16:9", "720p"}: "1280x720",
	{"9:16", "720p"}: "720x1280",
}

const defaultModel = "sora-2"

// Client is the Sora provider adapter.
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

// WithBaseURL sets a custom base URL for the Sora API.
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

// New creates a Sora client. The API key can be set via WithAPIKey; if
// not provided it is read from OPENAI_API_KEY. A missing key fails fast
// with an authentication error rather than deferring to the first call.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, &videogen.AuthError{
			Provider: videogen.ProviderSora,
			Detail:   "OPENAI_API_KEY environment variable not set",
		}
	}
	return c, nil
}

// Name returns the provider tag.
func (c *Client) Name() videogen.Provider { return videogen.ProviderSora }

// videoResponse is the Sora API's video object.
type videoResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	CreatedAt     int64   `json:"created_at"`
	Seconds       flexInt `json:"seconds"`
	Size          string  `json:"size"`
	FailureReason string  `json:"failure_reason"`
	Error         string  `json:"error"`
}

// flexInt accepts both numeric and quoted-string JSON values; the API
// reports seconds as a string but accepts an integer on creation.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// errorResponse is the Sora API's error envelope.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate issues the creation call. An input image submitted as base64
// or URL is uploaded via multipart form data; a URL image is fetched and
// re-encoded first since the API accepts only inline bytes.
func (c *Client) Generate(ctx context.Context, req videogen.Request, cfg videogen.GenerationConfig) (videogen.GeneratedVideo, error) {
	soraReq, ok := req.(videogen.SoraRequest)
	if !ok {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("unsupported request type for provider %s", req.Provider()),
		}
	}
	if soraReq.Prompt == "" || len(soraReq.Prompt) > videogen.MaxPromptLen {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("prompt must be 1-%d characters", videogen.MaxPromptLen),
		}
	}

	size, ok := sizeMap[[2]string{string(cfg.AspectRatio), cfg.Resolution}]
	if !ok {
		return videogen.GeneratedVideo{}, &videogen.ConfigError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("unsupported aspect_ratio/resolution combination: %s/%s", cfg.AspectRatio, cfg.Resolution),
		}
	}
	duration := videogen.SnapDuration(cfg.Duration, supportedDurations)

	model := soraReq.Model
	if model == "" {
		model = defaultModel
	}

	var httpReq *http.Request
	var err error
	if soraReq.InputImage != nil {
		httpReq, err = c.newMultipartRequest(ctx, model, soraReq.Prompt, size, duration, *soraReq.InputImage)
	} else {
		httpReq, err = c.newJSONRequest(ctx, model, soraReq.Prompt, size, duration)
	}
	if err != nil {
		return videogen.GeneratedVideo{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   err.Error(),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("read response: %v", err),
		}
	}
	if err := c.checkStatus(resp.StatusCode, body, ""); err != nil {
		return videogen.GeneratedVideo{}, err
	}

	var data videoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("unmarshal response: %v", err),
		}
	}
	return c.toGeneratedVideo(data), nil
}

// newJSONRequest builds the creation call without an input image.
func (c *Client) newJSONRequest(ctx context.Context, model, prompt, size string, duration int) (*http.Request, error) {
	payload := map[string]any{
		"model":   model,
		"prompt":  prompt,
		"size":    size,
		"seconds": duration,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sora: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sora: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// newMultipartRequest builds the creation call with the first-frame
// image uploaded as an input_reference file part.
func (c *Client) newMultipartRequest(ctx context.Context, model, prompt, size string, duration int, image videogen.ImageInput) (*http.Request, error) {
	if err := image.Validate(); err != nil {
		return nil, err
	}

	imageBytes, mimeType, err := c.resolveImageBytes(ctx, image)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":   model,
		"prompt":  prompt,
		"size":    size,
		"seconds": strconv.Itoa(duration),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("sora: write form field: %w", err)
		}
	}

	filename := "input_image." + extensionFor(mimeType)
	part, err := w.CreateFormFile("input_reference", filename)
	if err != nil {
		return nil, fmt.Errorf("sora: create form file: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("sora: write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sora: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", &buf)
	if err != nil {
		return nil, fmt.Errorf("sora: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// resolveImageBytes returns the raw image bytes and MIME type, fetching
// and re-encoding remote URLs since the API accepts only inline bytes.
func (c *Client) resolveImageBytes(ctx context.Context, image videogen.ImageInput) ([]byte, string, error) {
	if image.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(image.Base64)
		if err != nil {
			return nil, "", &videogen.ConfigError{
				Provider: videogen.ProviderSora,
				Detail:   fmt.Sprintf("decode image base64: %v", err),
			}
		}
		return data, image.MimeType, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, image.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("sora: create image fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("fetch input image: %v", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &videogen.RequestError{
			Provider:   videogen.ProviderSora,
			StatusCode: resp.StatusCode,
			Detail:     "fetch input image",
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("sora: read input image: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = videogen.MimeJPEG
	}
	return data, mimeType, nil
}

// GetStatus performs a single status poll.
func (c *Client) GetStatus(ctx context.Context, videoID string) (videogen.GeneratedVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+videoID, nil)
	if err != nil {
		return videogen.GeneratedVideo{}, fmt.Errorf("sora: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   err.Error(),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("read response: %v", err),
		}
	}
	if err := c.checkStatus(resp.StatusCode, body, videoID); err != nil {
		return videogen.GeneratedVideo{}, err
	}

	var data videoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return videogen.GeneratedVideo{}, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("unmarshal response: %v", err),
		}
	}
	return c.toGeneratedVideo(data), nil
}

// GetVideoURL returns the authenticated content URL for a completed video.
func (c *Client) GetVideoURL(ctx context.Context, videoID string) (string, error) {
	video, err := c.GetStatus(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video.Status != videogen.StatusCompleted {
		return "", &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("video is not completed (status: %s)", video.Status),
		}
	}
	return c.contentURL(videoID), nil
}

// OpenVideo fetches video content. Sora's content endpoint requires the
// same bearer credentials as the rest of the API.
func (c *Client) OpenVideo(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sora: create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &videogen.RequestError{
			Provider: videogen.ProviderSora,
			Detail:   fmt.Sprintf("download request failed: %v", err),
		}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &videogen.RequestError{
			Provider:   videogen.ProviderSora,
			StatusCode: resp.StatusCode,
			Detail:     "download failed",
		}
	}
	return resp.Body, nil
}

// checkStatus maps non-2xx responses to the error taxonomy.
func (c *Client) checkStatus(statusCode int, body []byte, videoID string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusUnauthorized:
		return &videogen.AuthError{Provider: videogen.ProviderSora, Detail: "invalid API key"}
	case http.StatusNotFound:
		if videoID != "" {
			return &videogen.NotFoundError{Provider: videogen.ProviderSora, VideoID: videoID}
		}
	}

	detail := string(body)
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		detail = errResp.Error.Message
	}
	return &videogen.RequestError{
		Provider:   videogen.ProviderSora,
		StatusCode: statusCode,
		Detail:     detail,
	}
}

// toGeneratedVideo normalizes a Sora video object into the canonical
// record. The content URL is derivable from the video ID, so it is
// populated as soon as the video completes.
func (c *Client) toGeneratedVideo(data videoResponse) videogen.GeneratedVideo {
	createdAt := time.Now().UTC()
	if data.CreatedAt > 0 {
		createdAt = time.Unix(data.CreatedAt, 0).UTC()
	}

	status := videogen.Status(data.Status)
	if status == "" {
		status = videogen.StatusQueued
	}

	var videoURL string
	if status == videogen.StatusCompleted {
		videoURL = c.contentURL(data.ID)
	}

	errMsg := data.FailureReason
	if errMsg == "" {
		errMsg = data.Error
	}

	return videogen.GeneratedVideo{
		ID:         data.ID,
		Status:     status,
		Progress:   data.Progress,
		CreatedAt:  createdAt,
		VideoURL:   videoURL,
		Duration:   int(data.Seconds),
		Resolution: data.Size,
		HasAudio:   false, // Sora does not generate audio
		Error:      errMsg,
	}
}

func (c *Client) contentURL(videoID string) string {
	return fmt.Sprintf("%s/videos/%s/content", c.baseURL, videoID)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case videogen.MimePNG:
		return "png"
	case videogen.MimeWebP:
		return "webp"
	default:
		return "jpg"
	}
}

// Compile-time check that Client implements the provider contract.
var _ videogen.VideoProvider = (*Client)(nil)
