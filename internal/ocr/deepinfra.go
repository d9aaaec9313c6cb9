package ocr

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DeepInfraName             = "deepinfra"
	DeepInfraBaseURL          = "https://api.deepinfra.com/v1/openai"
	DeepInfraDefaultModel     = "PaddlePaddle/PaddleOCR-VL-0.9B"
	DeepInfraDefaultOCRPrompt = "Extract all text from this image. Output one line of text per line in the image. Output only the extracted text."
)

// DeepInfraConfig holds configuration for the DeepInfra vision OCR client.
type DeepInfraConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// DeepInfraEngine implements Engine using DeepInfra's OpenAI-compatible chat API
// with a vision OCR model.
type DeepInfraEngine struct {
	model       string
	prompt      string
	temperature float64
	maxTokens   int
	client      openai.Client
}

// NewDeepInfraEngine creates a new DeepInfra OCR client.
func NewDeepInfraEngine(cfg DeepInfraConfig) *DeepInfraEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DeepInfraBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DeepInfraDefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DeepInfraDefaultOCRPrompt
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &DeepInfraEngine{
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      client,
	}
}

// Name returns the engine identifier.
func (e *DeepInfraEngine) Name() string {
	return DeepInfraName
}

// Model returns the configured model.
func (e *DeepInfraEngine) Model() string {
	return e.model
}

// Recognize asks the vision model to transcribe the image.
func (e *DeepInfraEngine) Recognize(ctx context.Context, in Input) (*Recognition, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(e.prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(in.Data),
				}),
			}),
		},
		Temperature: openai.Float(e.temperature),
		MaxTokens:   openai.Int(int64(e.maxTokens)),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("deepinfra ocr: response has no choices")
	}

	return &Recognition{
		Engine:   DeepInfraName,
		Segments: LineSegments(resp.Choices[0].Message.Content, ConfidenceUnknown),
	}, nil
}

// mapOpenAIError turns SDK errors into *APIError. The SDK has already
// retried rate limits and server errors by then.
func mapOpenAIError(err error) error {
	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return err
	}
	msg := sdkErr.Message
	if msg == "" {
		msg = http.StatusText(sdkErr.StatusCode)
	}
	return &APIError{Service: "deepinfra ocr", Status: sdkErr.StatusCode, Message: msg}
}

// Verify interface
var _ Engine = (*DeepInfraEngine)(nil)
