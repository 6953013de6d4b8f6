// Package llmutil resolves the configured LLM provider into a ready client.
package llmutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/level5vta-creator/ejdevassistant-bot/llm"
	"github.com/level5vta-creator/ejdevassistant-bot/providers/huggingface"
	"github.com/level5vta-creator/ejdevassistant-bot/providers/openai"
)

// ClientConfig is the resolved provider configuration for one client.
type ClientConfig struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

func ProviderFromViper() string {
	return normalizeProvider(viper.GetString("llm.provider"))
}

func EndpointFromViper() string {
	return EndpointForProvider(ProviderFromViper())
}

func APIKeyFromViper() string {
	return APIKeyForProvider(ProviderFromViper())
}

func ModelFromViper() string {
	return ModelForProvider(ProviderFromViper())
}

func TimeoutFromViper() time.Duration {
	d := viper.GetDuration("llm.request_timeout")
	if d <= 0 {
		d = 30 * time.Second
	}
	return d
}

// EndpointForProvider returns llm.endpoint when set, else the provider's
// well-known base URL.
func EndpointForProvider(provider string) string {
	if endpoint := strings.TrimSpace(viper.GetString("llm.endpoint")); endpoint != "" {
		return endpoint
	}
	switch normalizeProvider(provider) {
	case "groq":
		return "https://api.groq.com/openai"
	case "openrouter":
		return "https://openrouter.ai/api"
	case "deepseek":
		return "https://api.deepseek.com"
	case "huggingface":
		return "https://api-inference.huggingface.co"
	default:
		return "https://api.openai.com"
	}
}

func APIKeyForProvider(provider string) string {
	return firstNonEmpty(
		viper.GetString("llm."+normalizeProvider(provider)+".api_key"),
		viper.GetString("llm.api_key"),
	)
}

func ModelForProvider(provider string) string {
	if model := strings.TrimSpace(viper.GetString("llm.model")); model != "" {
		return model
	}
	switch normalizeProvider(provider) {
	case "groq":
		return "qwen-3-32b"
	case "deepseek":
		return "deepseek-chat"
	default:
		return ""
	}
}

// ClientFromConfig builds the Gateway client for cfg.Provider. All
// OpenAI-compatible vendors share one client; HuggingFace has its own
// response shape.
func ClientFromConfig(cfg ClientConfig) (llm.Client, error) {
	switch normalizeProvider(cfg.Provider) {
	case "openai", "groq", "openrouter", "deepseek":
		return openai.New(strings.TrimSpace(cfg.Endpoint), strings.TrimSpace(cfg.APIKey), cfg.RequestTimeout), nil
	case "huggingface":
		return huggingface.New(strings.TrimSpace(cfg.Endpoint), strings.TrimSpace(cfg.APIKey), cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "groq"
	}
	return provider
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
