package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SpectrogramRequest holds the parameters of a spectrogram job.
type SpectrogramRequest struct {
	ProcessingType string `json:"processing_type"`
	FFTSize        int    `json:"fft_size,omitempty"`
	Colormap       string `json:"colormap,omitempty"`
}

// SubmitSpectrogram asks the gateway to start a spectrogram job.
func (c *Client) SubmitSpectrogram(ctx context.Context, captureID string, req SpectrogramRequest) error {
	req.ProcessingType = ProcessingSpectrogram
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding spectrogram request: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, c.captureURL(captureID, "post_process", nil), body); err != nil {
		return err
	}
	logf("capture %s: spectrogram job submitted", captureID)
	return nil
}

// SpectrogramStatus reports the spectrogram artifact's processing status, or
// "" when the gateway lists none.
func (c *Client) SpectrogramStatus(ctx context.Context, captureID string) (string, error) {
	artifacts, err := c.PostProcessingStatus(ctx, captureID)
	if err != nil {
		return "", err
	}
	a, ok := FindArtifact(artifacts, ProcessingSpectrogram)
	if !ok {
		return "", nil
	}
	return a.ProcessingStatus, nil
}

// DownloadSpectrogram downloads the finished spectrogram image.
func (c *Client) DownloadSpectrogram(ctx context.Context, captureID string) ([]byte, error) {
	return c.DownloadArtifact(ctx, captureID, ProcessingSpectrogram)
}
