package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	MistralName    = "mistral-ocr"
	MistralBaseURL = "https://api.mistral.ai/v1"
	MistralModel   = "mistral-ocr-latest"

	mistralAttempts = 3
)

type MistralConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RetryDelay time.Duration // base backoff for 429 and 5xx, default 2s
	HTTPClient *http.Client
}

// MistralEngine calls the hosted Mistral OCR API. The API answers with
// markdown and no confidences, so every non-empty line becomes a segment
// with ConfidenceUnknown.
type MistralEngine struct {
	cfg    MistralConfig
	client *http.Client
}

func NewMistralEngine(cfg MistralConfig) *MistralEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &MistralEngine{cfg: cfg, client: client}
}

func (e *MistralEngine) Name() string { return MistralName }

func (e *MistralEngine) Recognize(ctx context.Context, in Input) (*Recognition, error) {
	body, err := json.Marshal(mistralOCRRequest{
		Model: e.cfg.Model,
		Document: mistralDocument{
			Type:     "image_url",
			ImageURL: &mistralImageURL{URL: dataURL(in.Data)},
		},
	})
	if err != nil {
		return nil, err
	}

	var out mistralOCRResponse
	err = retry.Do(
		func() error { return e.post(ctx, "/ocr", body, &out) },
		retry.Context(ctx),
		retry.Attempts(mistralAttempts),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryableStatus),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if len(out.Pages) == 0 {
		return nil, errors.New("mistral ocr: response has no pages")
	}
	// One image in, one page out.
	return &Recognition{
		Engine:   MistralName,
		Segments: LineSegments(out.Pages[0].Markdown, ConfidenceUnknown),
	}, nil
}

func (e *MistralEngine) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("mistral ocr: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mistral ocr: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Service: "mistral ocr", Status: resp.StatusCode, Message: string(data)}
		var parsed mistralErrorResponse
		if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("mistral ocr: decode response: %w", err)
	}
	return nil
}

// APIError is a non-200 answer from a hosted OCR API.
type APIError struct {
	Service string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Status, e.Message)
}

// retryableStatus retries rate limiting, server errors and transport
// failures. Other API errors are final.
func retryableStatus(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
}

// dataURL wraps encoded image bytes in a data URL, sniffing the media type.
func dataURL(data []byte) string {
	mediaType := http.DetectContentType(data)
	if mediaType == "application/octet-stream" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type mistralOCRRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type     string           `json:"type"` // "image_url" or "document_url"
	ImageURL *mistralImageURL `json:"image_url,omitempty"`
}

type mistralImageURL struct {
	URL string `json:"url"`
}

type mistralOCRResponse struct {
	Model string `json:"model"`
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var _ Engine = (*MistralEngine)(nil)
