// Package gateway is the REST client for the upstream capture gateway. It
// checks post-processing status and downloads the waterfall and spectrogram
// artifacts for a capture.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/capture.gateway/internal/httputil"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/version"
)

var logf = monitoring.Tagged("Gateway")

// Processing types and statuses reported by post_processing_status.
const (
	ProcessingWaterfall   = "waterfall"
	ProcessingSpectrogram = "spectrogram"

	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultCapturePath is the per-capture path template; %s is the capture ID.
const DefaultCapturePath = "/api/latest/assets/captures/%s/"

// maxResponseBytes bounds any single response body read from the gateway.
const maxResponseBytes = 512 << 20

// Artifact is one entry of the post_processing_status listing.
type Artifact struct {
	ProcessingType   string          `json:"processing_type"`
	ProcessingStatus string          `json:"processing_status"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// WaterfallEntry is one slice as served by download_post_processed_data.
type WaterfallEntry struct {
	Data       string  `json:"data"`
	SampleRate float64 `json:"sample_rate"`
}

// Client talks to the upstream gateway.
type Client struct {
	HTTPClient  httputil.HTTPClient
	BaseURL     string
	CapturePath string
	APIKey      string
}

// NewClient creates a gateway client. An empty capturePath uses
// DefaultCapturePath.
func NewClient(httpClient httputil.HTTPClient, baseURL, capturePath, apiKey string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	if capturePath == "" {
		capturePath = DefaultCapturePath
	}
	return &Client{
		HTTPClient:  httpClient,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		CapturePath: capturePath,
		APIKey:      apiKey,
	}
}

// captureURL builds the URL of endpoint under the capture's path.
func (c *Client) captureURL(captureID, endpoint string, query url.Values) string {
	path := fmt.Sprintf(c.CapturePath, url.PathEscape(captureID))
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u := c.BaseURL + path + endpoint + "/"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends one request and returns the body of a 2xx response. Any other
// status comes back as *APIError.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Api-Key "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// PostProcessingStatus lists the post-processed artifacts of a capture. The
// gateway answers either with a bare array or with an object carrying the
// array under "post_processed_data".
func (c *Client) PostProcessingStatus(ctx context.Context, captureID string) ([]Artifact, error) {
	data, err := c.do(ctx, http.MethodGet, c.captureURL(captureID, "post_processing_status", nil), nil)
	if err != nil {
		return nil, err
	}
	return parseArtifacts(data)
}

func parseArtifacts(data []byte) ([]Artifact, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Artifact
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decoding status list: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		PostProcessedData []Artifact `json:"post_processed_data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return wrapped.PostProcessedData, nil
}

// FindArtifact returns the first artifact of the given processing type.
func FindArtifact(artifacts []Artifact, processingType string) (Artifact, bool) {
	for _, a := range artifacts {
		if a.ProcessingType == processingType {
			return a, true
		}
	}
	return Artifact{}, false
}

// DownloadArtifact downloads the raw post-processed data of one type.
func (c *Client) DownloadArtifact(ctx context.Context, captureID, processingType string) ([]byte, error) {
	q := url.Values{"processing_type": {processingType}}
	return c.do(ctx, http.MethodGet, c.captureURL(captureID, "download_post_processed_data", q), nil)
}

// DownloadWaterfall downloads the waterfall slices in index order.
func (c *Client) DownloadWaterfall(ctx context.Context, captureID string) ([]WaterfallEntry, error) {
	data, err := c.DownloadArtifact(ctx, captureID, ProcessingWaterfall)
	if err != nil {
		return nil, err
	}
	var entries []WaterfallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding waterfall payload: %w", err)
	}
	return entries, nil
}

// FetchWaterfall checks that a completed waterfall artifact exists and then
// downloads it. Nothing is retried.
func (c *Client) FetchWaterfall(ctx context.Context, captureID string) ([]WaterfallEntry, error) {
	artifacts, err := c.PostProcessingStatus(ctx, captureID)
	if err != nil {
		return nil, fmt.Errorf("checking waterfall status: %w", err)
	}
	a, ok := FindArtifact(artifacts, ProcessingWaterfall)
	if !ok || a.ProcessingStatus != StatusCompleted {
		status := "missing"
		if ok {
			status = a.ProcessingStatus
		}
		return nil, fmt.Errorf("%w (status %s)", ErrWaterfallNotReady, status)
	}

	entries, err := c.DownloadWaterfall(ctx, captureID)
	if err != nil {
		return nil, fmt.Errorf("downloading waterfall: %w", err)
	}
	logf("capture %s: fetched %d waterfall slices", captureID, len(entries))
	return entries, nil
}
