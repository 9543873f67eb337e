package providers

import (
	"fmt"
	"time"
)

// ProviderType identifies a backend implementation.
type ProviderType string

const (
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// BaseConfig contains configuration common to all providers.
type BaseConfig struct {
	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the default model to use when the variant does not override it.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the default maximum tokens to generate.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Timeout is the hard ceiling on a single API request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBaseConfig returns sensible defaults.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// Validate checks the base configuration.
func (c *BaseConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// OpenAIConfig contains OpenAI-specific configuration.
type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Organization is the OpenAI-Organization header.
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`

	// Project is the OpenAI-Project header.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
}

// DefaultOpenAIConfig returns OpenAI defaults.
func DefaultOpenAIConfig() OpenAIConfig {
	base := DefaultBaseConfig()
	base.Model = "gpt-4o"
	return OpenAIConfig{BaseConfig: base}
}

// AnthropicConfig contains Anthropic-specific configuration.
type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// DefaultAnthropicConfig returns Anthropic defaults.
func DefaultAnthropicConfig() AnthropicConfig {
	base := DefaultBaseConfig()
	base.Model = "claude-sonnet-4-5-20250901"
	base.MaxTokens = 8192
	return AnthropicConfig{BaseConfig: base}
}
