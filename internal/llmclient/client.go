// File: internal/llmclient/client.go

// Package llmclient talks to the multimodal model: prompt construction,
// transport with retries and rate limiting, and strict parsing of the
// model's JSON replies into engine actions and verdicts.
package llmclient

import (
	"context"
	"time"
)

// ModelConfig describes one model endpoint.
type ModelConfig struct {
	Provider      string            `mapstructure:"provider"`
	Model         string            `mapstructure:"model"`
	APIKey        string            `mapstructure:"api_key"`
	Endpoint      string            `mapstructure:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout"`
	Temperature   float64           `mapstructure:"temperature"`
	TopP          float32           `mapstructure:"top_p"`
	TopK          int               `mapstructure:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens"`
	RequestsPerMin int              `mapstructure:"requests_per_min"`
	SafetyFilters map[string]string `mapstructure:"safety_filters"`
}

// GenerationOptions tune a single request.
type GenerationOptions struct {
	Temperature     float64
	ForceJSONFormat bool
}

// ImagePart is one inline image attached to a generation request.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// GenerationRequest is one multimodal prompt.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Images       []ImagePart
	Options      GenerationOptions
}

// LLMClient generates text from a multimodal prompt.
type LLMClient interface {
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, error)
}
