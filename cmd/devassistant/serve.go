package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/chathistory"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/llmutil"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/logutil"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/telegram"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot (long-poll or webhook per config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}

			provider := llmutil.ProviderFromViper()
			apiKey := llmutil.APIKeyFromViper()
			if apiKey == "" {
				return fmt.Errorf("missing llm.api_key (set %s_LLM_API_KEY)", envPrefix)
			}
			model := llmutil.ModelFromViper()
			if model == "" {
				return fmt.Errorf("missing llm.model for provider %q", provider)
			}
			gateway, err := llmutil.ClientFromConfig(llmutil.ClientConfig{
				Provider:       provider,
				Endpoint:       llmutil.EndpointFromViper(),
				APIKey:         apiKey,
				Model:          model,
				RequestTimeout: llmutil.TimeoutFromViper(),
			})
			if err != nil {
				return err
			}

			inprocBus, err := busruntime.StartInproc(busruntime.BootstrapOptions{
				MaxInFlight: viper.GetInt("bus.max_in_flight"),
				Logger:      logger,
				Component:   "telegram",
			})
			if err != nil {
				return err
			}
			defer inprocBus.Close()

			historyCap := viper.GetInt("history.max_turns")
			if historyCap <= 0 {
				historyCap = chathistory.DefaultCap
			}

			rt, err := telegram.NewRuntime(telegram.Options{
				API:            telegram.NewAPI(nil, viper.GetString("telegram.api_base_url"), token),
				Bus:            inprocBus,
				History:        chathistory.New(historyCap),
				LLM:            gateway,
				Logger:         logger,
				Model:          model,
				SystemPrompt:   strings.TrimSpace(viper.GetString("llm.system_prompt")),
				Temperature:    viper.GetFloat64("llm.temperature"),
				MaxTokens:      viper.GetInt("llm.max_tokens"),
				TaskTimeout:    llmutil.TimeoutFromViper(),
				PollTimeout:    pollTimeoutFromViper(),
				MaxConcurrency: viper.GetInt("telegram.max_concurrency"),
				AllowedChatIDs: allowedChatIDsFromViper(),
				HealthListen:   viper.GetString("health.listen"),
				WebhookURL:     strings.TrimSpace(viper.GetString("telegram.webhook_url")),
				WebhookSecret:  strings.TrimSpace(viper.GetString("telegram.webhook_secret")),
				WebhookListen:  viper.GetString("telegram.webhook_listen"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger.Info("serve_start",
				"provider", provider,
				"model", model,
				"webhook", viper.GetString("telegram.webhook_url") != "")
			return rt.Run(ctx)
		},
	}

	cmd.Flags().String("provider", "", "LLM provider: groq|openrouter|deepseek|openai|huggingface.")
	cmd.Flags().String("model", "", "Model name (provider default when empty).")
	cmd.Flags().String("webhook-url", "", "Public HTTPS base URL; enables webhook mode.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (poll mode).")
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", cmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("telegram.webhook_url", cmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("health.listen", cmd.Flags().Lookup("health-listen"))

	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("telegram.max_concurrency", 4)
	viper.SetDefault("telegram.poll_timeout", "30s")

	return cmd
}

func pollTimeoutFromViper() time.Duration {
	d := viper.GetDuration("telegram.poll_timeout")
	if d <= 0 {
		d = 30 * time.Second
	}
	return d
}

func allowedChatIDsFromViper() []int64 {
	var out []int64
	for _, id := range viper.GetIntSlice("telegram.allowed_chat_ids") {
		out = append(out, int64(id))
	}
	return out
}
