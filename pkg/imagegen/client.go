package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.stability.ai"

// APIError captures non-200 responses to allow inspection of the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Body)
}

// Client generates images through the Stability text-to-image API.
type Client struct {
	apiKey string
	apiURL string
	engine string
	client *http.Client
}

func NewClient(apiKey, engine string) *Client {
	if engine == "" {
		engine = "stable-diffusion-xl-1024-v1-0"
	}
	return &Client{
		apiKey: apiKey,
		apiURL: defaultAPIURL,
		engine: engine,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type textPrompt struct {
	Text string `json:"text"`
}

type generateRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
	Seed        int          `json:"seed"`
}

type generateResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Generate returns the first rendered artifact as png bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	reqBody := generateRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		CfgScale:    7.0,
		Width:       512,
		Height:      512,
		Samples:     1,
		Steps:       30,
		Seed:        42,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.apiURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, artifact := range genResp.Artifacts {
		if artifact.Base64 == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(artifact.Base64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artifact: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no image artifacts in response")
}
