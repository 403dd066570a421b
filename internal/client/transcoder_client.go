package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RefurbishedContent/mysounds-sub002/internal/config"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

// TranscoderClient talks to the encoding microservice that derives lossy
// wrappers from published WAV renders
type TranscoderClient struct {
	httpClient *http.Client
	baseURL    string
}

// EncodeRequest represents the request for audio encoding
type EncodeRequest struct {
	InputURL  string            `json:"input_url"`
	Format    string            `json:"format"`
	Bitrate   int               `json:"bitrate,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	OutputKey string            `json:"output_key"`
}

// EncodeResponse represents the response from encoding
type EncodeResponse struct {
	OutputURL string `json:"output_url"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
}

// NewTranscoderClient creates a new transcoder client
func NewTranscoderClient(cfg *config.TranscoderConfig) *TranscoderClient {
	return &TranscoderClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Transcode encodes the WAV at sourceURL into format at bitrate kbps
func (c *TranscoderClient) Transcode(ctx context.Context, sourceURL string, format model.Format, bitrate int, outputKey string) (string, error) {
	var result EncodeResponse
	err := c.post(ctx, "/encode", &EncodeRequest{
		InputURL:  sourceURL,
		Format:    string(format),
		Bitrate:   bitrate,
		OutputKey: outputKey,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.OutputURL == "" {
		return "", fmt.Errorf("transcoder returned no output url")
	}
	return result.OutputURL, nil
}

// HealthCheck checks if the transcoder is available
func (c *TranscoderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcoder unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// IsConfigured returns true if a service URL was given
func (c *TranscoderClient) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *TranscoderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transcoder error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
