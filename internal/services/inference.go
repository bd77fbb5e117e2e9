package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sampling parameters sent with every generation request.
const (
	SamplingTemperature = 0.3
	SamplingMaxTokens   = 800
	SamplingTopK        = 20
	SamplingTopP        = 0.9
)

const (
	DefaultInferenceTimeout = 300 * time.Second
	DefaultHealthTimeout    = 5 * time.Second
)

// BackendStatus is the result of a health probe against the inference backend.
type BackendStatus string

const (
	BackendConnected    BackendStatus = "connected"
	BackendError        BackendStatus = "error"
	BackendDisconnected BackendStatus = "disconnected"
)

// InferenceResult is a successful generation.
type InferenceResult struct {
	Text  string
	Model string
	Chars int
	Bytes int
}

// InferenceClient sends one prompt to the model and waits for the complete
// answer. Errors returned by Infer are always *Error with an inference kind.
type InferenceClient interface {
	Infer(ctx context.Context, prompt string) (*InferenceResult, error)
	// Health never fails; problems are folded into the returned status.
	Health(ctx context.Context) BackendStatus
	Model() string
}

// ClientConfig is shared by every InferenceClient implementation.
type ClientConfig struct {
	Provider      string
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultInferenceTimeout
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return c
}

// NewInferenceClient builds the client for cfg.Provider ("ollama" when empty).
func NewInferenceClient(cfg ClientConfig) (InferenceClient, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// classifyTransportError turns a failure to exchange bytes with the backend
// into a timeout or unavailable error.
func classifyTransportError(err error, timeout time.Duration, baseURL string) *Error {
	if isTimeout(err) {
		return newError(ErrorKindInferenceTimeout,
			fmt.Sprintf("Ollama timeout après %s. Essayez un modèle plus petit.", formatTimeout(timeout)),
			err)
	}
	return newError(ErrorKindInferenceUnavailable,
		fmt.Sprintf("Erreur connexion Ollama: %v. Vérifiez que le serveur d'inférence est démarré sur %s.", err, baseURL),
		err)
}

func formatTimeout(d time.Duration) string {
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
