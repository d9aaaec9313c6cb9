package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	PaddleName       = "paddle"
	PaddleDefaultURL = "http://127.0.0.1:8080"
)

// PaddleConfig holds configuration for the PaddleOCR serving client.
type PaddleConfig struct {
	URL     string
	Timeout time.Duration
	// AngleClassification enables text-line orientation correction.
	AngleClassification bool
	// ReadyTimeout bounds how long Init waits for the service.
	ReadyTimeout time.Duration
	HTTPClient   *http.Client // Optional (tests)
}

// PaddleEngine implements Engine using a PaddleOCR serving endpoint.
type PaddleEngine struct {
	url          string
	angle        bool
	readyTimeout time.Duration
	client       *http.Client
}

// NewPaddleEngine creates a new PaddleOCR client.
func NewPaddleEngine(cfg PaddleConfig) *PaddleEngine {
	if cfg.URL == "" {
		cfg.URL = PaddleDefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PaddleEngine{
		url:          strings.TrimRight(cfg.URL, "/"),
		angle:        cfg.AngleClassification,
		readyTimeout: cfg.ReadyTimeout,
		client:       client,
	}
}

// Name returns the engine identifier.
func (e *PaddleEngine) Name() string {
	return PaddleName
}

// Init waits until the serving endpoint reports healthy.
func (e *PaddleEngine) Init(ctx context.Context) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	url := e.url + "/health"

	attempts := uint(e.readyTimeout.Seconds())
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("paddle OCR service at %s not ready: %w", e.url, err)
	}
	return nil
}

// Recognize sends the image to the /ocr endpoint.
func (e *PaddleEngine) Recognize(ctx context.Context, in Input) (*Recognition, error) {
	reqBody := paddleOCRRequest{
		File:                      base64.StdEncoding.EncodeToString(in.Data),
		FileType:                  paddleFileTypeImage,
		UseDocOrientationClassify: e.angle,
		UseTextlineOrientation:    e.angle,
	}

	resp, err := e.doRequest(ctx, "/ocr", reqBody)
	if err != nil {
		return nil, err
	}

	rec := &Recognition{Engine: PaddleName}
	for _, r := range resp.Result.OCRResults {
		texts := r.PrunedResult.RecTexts
		scores := r.PrunedResult.RecScores
		for i, t := range texts {
			conf := ConfidenceUnknown
			if i < len(scores) {
				conf = scores[i]
			}
			rec.Segments = append(rec.Segments, Segment{Text: t, Confidence: conf})
		}
	}
	return rec, nil
}

// doRequest makes an HTTP request to the serving endpoint.
func (e *PaddleEngine) doRequest(ctx context.Context, path string, body any) (*paddleOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.url+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var ocrResp paddleOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("paddle OCR error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || ocrResp.ErrorCode != 0 {
		return nil, fmt.Errorf("paddle OCR error (status %d, code %d): %s", resp.StatusCode, ocrResp.ErrorCode, ocrResp.ErrorMsg)
	}
	return &ocrResp, nil
}

// PaddleOCR serving API types

const paddleFileTypeImage = 1

type paddleOCRRequest struct {
	File                      string `json:"file"`
	FileType                  int    `json:"fileType"`
	UseDocOrientationClassify bool   `json:"useDocOrientationClassify"`
	UseTextlineOrientation    bool   `json:"useTextlineOrientation"`
}

type paddleOCRResponse struct {
	LogID     string `json:"logId"`
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Result    struct {
		OCRResults []paddleOCRResult `json:"ocrResults"`
	} `json:"result"`
}

type paddleOCRResult struct {
	PrunedResult struct {
		RecTexts  []string  `json:"rec_texts"`
		RecScores []float64 `json:"rec_scores"`
	} `json:"prunedResult"`
}

// Verify interface
var _ Engine = (*PaddleEngine)(nil)
