package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"cv-analyzer/internal/logger"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint, such as
// the /v1 API exposed by Ollama, llama.cpp or LM Studio.
type OpenAIClient struct {
	cfg          ClientConfig
	client       *openai.Client
	healthClient *openai.Client
}

func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	cfg = cfg.withDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIClient{
		cfg:          cfg,
		client:       newOpenAIClient(cfg, cfg.Timeout),
		healthClient: newOpenAIClient(cfg, cfg.HealthTimeout),
	}
}

func newOpenAIClient(cfg ClientConfig, timeout time.Duration) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(config)
}

func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

func (c *OpenAIClient) Infer(ctx context.Context, prompt string) (*InferenceResult, error) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"req_id":  uuid.NewString(),
		"backend": "openai",
		"model":   c.cfg.Model,
	})
	log.WithFields(logrus.Fields{
		"prompt_chars": utf8.RuneCountInString(prompt),
		"timeout":      c.cfg.Timeout.String(),
	}).Info("Calling chat completion API")

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			// Chat completions have no top_k; SamplingTopK only reaches Ollama
			Temperature: SamplingTemperature,
			MaxTokens:   SamplingMaxTokens,
			TopP:        SamplingTopP,
		},
	)
	if err != nil {
		classified := c.classify(err)
		log.WithFields(logrus.Fields{
			"kind":       classified.Kind,
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Error("Chat completion request failed")
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, newError(ErrorKindInferenceProtocol, "Failed to parse model response: no choices returned", errors.New("no choices"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.WithFields(logrus.Fields{
		"response_chars": utf8.RuneCountInString(text),
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}).Info("Chat completion received")

	return &InferenceResult{
		Text:  text,
		Model: c.cfg.Model,
		Chars: utf8.RuneCountInString(text),
		Bytes: len(text),
	}, nil
}

func (c *OpenAIClient) classify(err error) *Error {
	if isTimeout(err) {
		return classifyTransportError(err, c.cfg.Timeout, c.cfg.BaseURL)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(ErrorKindInferenceProtocol,
			fmt.Sprintf("Inference API error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(ErrorKindInferenceProtocol,
			fmt.Sprintf("Inference API error (%d): %v", reqErr.HTTPStatusCode, reqErr.Err), err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classifyTransportError(err, c.cfg.Timeout, c.cfg.BaseURL)
	}
	return newError(ErrorKindInferenceProtocol, fmt.Sprintf("Failed to parse model response: %v", err), err)
}

// Health lists the backend's models with the short health timeout.
func (c *OpenAIClient) Health(ctx context.Context) BackendStatus {
	_, err := c.healthClient.ListModels(ctx)
	if err == nil {
		return BackendConnected
	}

	logger.WithFields(logrus.Fields{
		"backend": "openai",
		"error":   err.Error(),
	}).Warn("Inference health probe failed")

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return BackendError
	}
	return BackendDisconnected
}
