package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "creativia-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "creativia-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Checkout.Currency != "usd" {
		t.Errorf("expected default currency usd, got %s", cfg.Checkout.Currency)
	}
	if cfg.Client.BaseURL != defaultClientBaseURL {
		t.Errorf("expected default client base url, got %s", cfg.Client.BaseURL)
	}
	if cfg.PSP.GatewayTimeout != defaultGatewayTimeout {
		t.Errorf("unexpected default gateway timeout: %s", cfg.PSP.GatewayTimeout)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                 "9090",
		"API_SERVER_READ_TIMEOUT":         "20s",
		"API_SERVER_WRITE_TIMEOUT":        "25s",
		"API_SERVER_IDLE_TIMEOUT":         "2m",
		"API_FIREBASE_PROJECT_ID":         "creativia-prod",
		"API_FIRESTORE_PROJECT_ID":        "creativia-fire",
		"API_PSP_STRIPE_API_KEY":          "sk_test_123",
		"API_PSP_STRIPE_WEBHOOK_SECRET":   "whsec_456",
		"API_PSP_GATEWAY_TIMEOUT":         "5s",
		"API_CHECKOUT_CURRENCY":           "USD",
		"API_CLIENT_BASE_URL":             "https://creativia.example.com/",
		"API_RATELIMIT_DEFAULT_PER_MIN":   "150",
		"API_RATELIMIT_CHECKOUT_PER_MIN":  "60",
		"API_RATELIMIT_WEBHOOK_BURST":     "80",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "creativia-fire" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_123" {
		t.Errorf("unexpected stripe api key %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.GatewayTimeout != 5*time.Second {
		t.Errorf("unexpected gateway timeout %s", cfg.PSP.GatewayTimeout)
	}
	if cfg.Checkout.Currency != "usd" {
		t.Errorf("expected currency lowered to usd, got %s", cfg.Checkout.Currency)
	}
	if cfg.Client.BaseURL != "https://creativia.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Client.BaseURL)
	}
	if cfg.RateLimits.CheckoutPerMinute != 60 {
		t.Errorf("unexpected checkout rate limit %d", cfg.RateLimits.CheckoutPerMinute)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=creativia-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "creativia-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadEnvMapOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_CLIENT_BASE_URL=https://dot.example.com\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithEnvMap(overrides), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firebase.ProjectID != "override-project" {
		t.Fatalf("expected override project, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Client.BaseURL != "https://dot.example.com" {
		t.Fatalf("expected dotenv client base url, got %s", cfg.Client.BaseURL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}
