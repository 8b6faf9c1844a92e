package vault

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"solana-copy-trader/config"
)

func newTestVault(t *testing.T, secrets map[string]string) (*Client, *int32) {
	t.Helper()
	var reads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&reads, 1)
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, ok := secrets[strings.TrimPrefix(r.URL.Path, "/v1/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(config.VaultConfig{
		Enabled:    true,
		Address:    server.URL,
		Token:      "root",
		MountPath:  "secret",
		SecretPath: "copy-trader/providers",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, &reads
}

func TestGetProviderSecretCaches(t *testing.T) {
	c, reads := newTestVault(t, map[string]string{
		"secret/data/copy-trader/providers/jupiter": `{"data":{"data":{"api_key":"jup-key"},"metadata":{"version":1}}}`,
	})

	for i := 0; i < 2; i++ {
		fields, err := c.GetProviderSecret(context.Background(), ProviderJupiter)
		if err != nil {
			t.Fatalf("GetProviderSecret failed: %v", err)
		}
		if fields["api_key"] != "jup-key" {
			t.Errorf("Expected jup-key, got %q", fields["api_key"])
		}
	}
	if *reads != 1 {
		t.Errorf("Expected 1 vault read, got %d", *reads)
	}

	if _, err := c.GetProviderSecret(context.Background(), ProviderDiscord); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Expected ErrSecretNotFound, got %v", err)
	}
}

func TestApplyToConfig(t *testing.T) {
	c, _ := newTestVault(t, map[string]string{
		"secret/data/copy-trader/providers/llm":    `{"data":{"data":{"claude_api_key":"sk-vault"}}}`,
		"secret/data/copy-trader/providers/helius": `{"data":{"data":{"webhook_auth_token":"from-vault"}}}`,
	})

	cfg := &config.Config{}
	cfg.HeliusConfig.WebhookAuthToken = "from-env"

	if err := c.ApplyToConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ApplyToConfig failed: %v", err)
	}
	if cfg.AIConfig.ClaudeAPIKey != "sk-vault" {
		t.Errorf("Expected Claude key from vault, got %q", cfg.AIConfig.ClaudeAPIKey)
	}
	if cfg.HeliusConfig.WebhookAuthToken != "from-env" {
		t.Errorf("Expected environment value to win, got %q", cfg.HeliusConfig.WebhookAuthToken)
	}
	if cfg.JupiterConfig.APIKey != "" {
		t.Errorf("Expected missing secret to be skipped, got %q", cfg.JupiterConfig.APIKey)
	}
}

func TestDisabledClient(t *testing.T) {
	c, err := NewClient(config.VaultConfig{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.IsEnabled() {
		t.Error("Expected disabled client")
	}
	if err := c.ApplyToConfig(context.Background(), &config.Config{}); err != nil {
		t.Errorf("Expected no-op, got %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy no-op, got %v", err)
	}
}
