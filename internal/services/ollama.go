package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"cv-analyzer/internal/logger"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"
)

const (
	ollamaGeneratePath = "/api/generate"
	ollamaTagsPath     = "/api/tags"
)

var generateResponseSchema = jsonschema.MustCompileString("generate_response.json", `{
	"type": "object",
	"required": ["response"],
	"properties": {
		"response": {"type": "string"},
		"model": {"type": "string"},
		"done": {"type": "boolean"}
	}
}`)

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
}

// OllamaClient talks to the Ollama REST API.
type OllamaClient struct {
	cfg          ClientConfig
	httpClient   *http.Client
	healthClient *http.Client
}

func NewOllamaClient(cfg ClientConfig) *OllamaClient {
	cfg = cfg.withDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaClient{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		healthClient: &http.Client{Timeout: cfg.HealthTimeout},
	}
}

func (c *OllamaClient) Model() string {
	return c.cfg.Model
}

func (c *OllamaClient) Infer(ctx context.Context, prompt string) (*InferenceResult, error) {
	reqID := uuid.NewString()
	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"req_id":  reqID,
		"backend": "ollama",
		"model":   c.cfg.Model,
	})

	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: SamplingTemperature,
			NumPredict:  SamplingMaxTokens,
			TopK:        SamplingTopK,
			TopP:        SamplingTopP,
		},
	})
	if err != nil {
		return nil, newError(ErrorKindInferenceProtocol, fmt.Sprintf("Failed to encode Ollama request: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+ollamaGeneratePath, bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrorKindInferenceUnavailable, fmt.Sprintf("Erreur connexion Ollama: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.WithFields(logrus.Fields{
		"prompt_chars": utf8.RuneCountInString(prompt),
		"timeout":      c.cfg.Timeout.String(),
	}).Info("Calling Ollama API")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransportError(err, c.cfg.Timeout, c.cfg.BaseURL)
		log.WithFields(logrus.Fields{
			"kind":       classified.Kind,
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Error("Ollama request failed")
		return nil, classified
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		classified := classifyTransportError(err, c.cfg.Timeout, c.cfg.BaseURL)
		log.WithFields(logrus.Fields{
			"kind":       classified.Kind,
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Error("Failed to read Ollama response")
		return nil, classified
	}

	if resp.StatusCode != http.StatusOK {
		log.WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Error("Ollama returned a non-200 status")
		return nil, newError(ErrorKindInferenceProtocol,
			fmt.Sprintf("Ollama API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	parsed, err := decodeGenerateResponse(raw)
	if err != nil {
		log.WithFields(logrus.Fields{
			"error": err.Error(),
			"bytes": len(raw),
		}).Error("Malformed Ollama response")
		return nil, newError(ErrorKindInferenceProtocol, fmt.Sprintf("Failed to parse Ollama response: %v", err), err)
	}

	text := strings.TrimSpace(parsed.Response)
	result := &InferenceResult{
		Text:  text,
		Model: c.cfg.Model,
		Chars: utf8.RuneCountInString(text),
		Bytes: len(text),
	}

	log.WithFields(logrus.Fields{
		"response_chars": result.Chars,
		"eval_count":     parsed.EvalCount,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}).Info("Ollama response received")

	return result, nil
}

func decodeGenerateResponse(raw []byte) (*generateResponse, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := generateResponseSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("unexpected response shape: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Health queries the model list endpoint with the short health timeout.
func (c *OllamaClient) Health(ctx context.Context) BackendStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+ollamaTagsPath, nil)
	if err != nil {
		return BackendDisconnected
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"backend": "ollama",
			"error":   err.Error(),
		}).Warn("Ollama health probe failed")
		return BackendDisconnected
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return BackendError
	}
	return BackendConnected
}
