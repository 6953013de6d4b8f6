package llmutil

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/level5vta-creator/ejdevassistant-bot/providers/huggingface"
	"github.com/level5vta-creator/ejdevassistant-bot/providers/openai"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestEndpointForProviderDefaults(t *testing.T) {
	resetViper(t)

	cases := map[string]string{
		"groq":        "https://api.groq.com/openai",
		"openrouter":  "https://openrouter.ai/api",
		"deepseek":    "https://api.deepseek.com",
		"huggingface": "https://api-inference.huggingface.co",
		"openai":      "https://api.openai.com",
		"":            "https://api.groq.com/openai",
	}
	for provider, want := range cases {
		if got := EndpointForProvider(provider); got != want {
			t.Fatalf("endpoint mismatch for %q: got %q want %q", provider, got, want)
		}
	}
}

func TestEndpointOverride(t *testing.T) {
	resetViper(t)

	viper.Set("llm.endpoint", "http://localhost:8080")
	if got := EndpointForProvider("groq"); got != "http://localhost:8080" {
		t.Fatalf("endpoint mismatch: got %q want %q", got, "http://localhost:8080")
	}
}

func TestAPIKeyProviderOverride(t *testing.T) {
	resetViper(t)

	viper.Set("llm.api_key", "generic")
	viper.Set("llm.groq.api_key", "groq-specific")
	if got := APIKeyForProvider("groq"); got != "groq-specific" {
		t.Fatalf("api key mismatch: got %q want %q", got, "groq-specific")
	}
	if got := APIKeyForProvider("deepseek"); got != "generic" {
		t.Fatalf("api key mismatch: got %q want %q", got, "generic")
	}
}

func TestModelDefaults(t *testing.T) {
	resetViper(t)

	if got := ModelForProvider("groq"); got != "qwen-3-32b" {
		t.Fatalf("model mismatch: got %q want %q", got, "qwen-3-32b")
	}
	viper.Set("llm.model", "custom")
	if got := ModelForProvider("groq"); got != "custom" {
		t.Fatalf("model mismatch: got %q want %q", got, "custom")
	}
}

func TestTimeoutDefault(t *testing.T) {
	resetViper(t)

	if got := TimeoutFromViper(); got != 30*time.Second {
		t.Fatalf("timeout mismatch: got %v want %v", got, 30*time.Second)
	}
	viper.Set("llm.request_timeout", "45s")
	if got := TimeoutFromViper(); got != 45*time.Second {
		t.Fatalf("timeout mismatch: got %v want %v", got, 45*time.Second)
	}
}

func TestClientFromConfig(t *testing.T) {
	resetViper(t)

	c, err := ClientFromConfig(ClientConfig{Provider: "groq", APIKey: "k"})
	if err != nil {
		t.Fatalf("ClientFromConfig() error = %v", err)
	}
	if _, ok := c.(*openai.Client); !ok {
		t.Fatalf("client type mismatch: got %T want *openai.Client", c)
	}

	c, err = ClientFromConfig(ClientConfig{Provider: "huggingface", APIKey: "k"})
	if err != nil {
		t.Fatalf("ClientFromConfig() error = %v", err)
	}
	if _, ok := c.(*huggingface.Client); !ok {
		t.Fatalf("client type mismatch: got %T want *huggingface.Client", c)
	}

	if _, err := ClientFromConfig(ClientConfig{Provider: "mystery"}); err == nil {
		t.Fatalf("error mismatch: got nil want unknown provider error")
	}
}
