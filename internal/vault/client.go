package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-copy-trader/config"

	"github.com/hashicorp/vault/api"
)

// ErrSecretNotFound is returned when a provider has no secret in Vault
var ErrSecretNotFound = errors.New("secret not found")

// Provider secret names under the configured secret path
const (
	ProviderHelius   = "helius"
	ProviderJupiter  = "jupiter"
	ProviderLLM      = "llm"
	ProviderAuth     = "auth"
	ProviderTelegram = "telegram"
	ProviderDiscord  = "discord"
	ProviderDatabase = "database"
)

// Client wraps the HashiCorp Vault client. Secrets live in a KV v2 engine
// at <mount>/data/<secret path>/<provider>.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]map[string]string // provider -> fields
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg, cache: make(map[string]map[string]string)}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]map[string]string),
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// GetProviderSecret reads the string fields of one provider's secret
func (c *Client) GetProviderSecret(ctx context.Context, provider string) (map[string]string, error) {
	c.mu.RLock()
	if cached, ok := c.cache[provider]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, ErrSecretNotFound
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s secret from vault: %w", provider, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for %s", provider)
	}

	fields := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}

	c.mu.Lock()
	c.cache[provider] = fields
	c.mu.Unlock()

	return fields, nil
}

// ApplyToConfig fills credentials the environment left empty. Values that
// are already set win over Vault; missing secrets are skipped.
func (c *Client) ApplyToConfig(ctx context.Context, cfg *config.Config) error {
	if !c.config.Enabled {
		return nil
	}

	targets := []struct {
		provider string
		field    string
		dst      *string
	}{
		{ProviderHelius, "webhook_auth_token", &cfg.HeliusConfig.WebhookAuthToken},
		{ProviderJupiter, "api_key", &cfg.JupiterConfig.APIKey},
		{ProviderLLM, "claude_api_key", &cfg.AIConfig.ClaudeAPIKey},
		{ProviderLLM, "openai_api_key", &cfg.AIConfig.OpenAIAPIKey},
		{ProviderLLM, "deepseek_api_key", &cfg.AIConfig.DeepSeekAPIKey},
		{ProviderAuth, "jwt_secret", &cfg.AuthConfig.JWTSecret},
		{ProviderTelegram, "bot_token", &cfg.NotificationConfig.Telegram.BotToken},
		{ProviderDiscord, "webhook_url", &cfg.NotificationConfig.Discord.WebhookURL},
		{ProviderDatabase, "password", &cfg.DatabaseConfig.Password},
	}

	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		fields, err := c.GetProviderSecret(ctx, t.provider)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if v := fields[t.field]; v != "" {
			*t.dst = v
		}
	}
	return nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}
