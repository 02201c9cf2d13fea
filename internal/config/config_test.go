package config

import (
	"os"
	"testing"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t, "CLOUD", "REGION", "DISABLE_JWT_AUTH_INSECURE", "JWT_ISSUER", "JWKS_URL", "JWT_SIGNING_KEY")
	os.Setenv("DISABLE_JWT_AUTH_INSECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cloud != facade.Local {
		t.Fatalf("expected default cloud Local, got %s", cfg.Cloud)
	}
	if cfg.Region != "us-east-1" {
		t.Fatalf("expected default region, got %s", cfg.Region)
	}
	if cfg.ConcurrencyLimit != 10 {
		t.Fatalf("expected default concurrency limit 10, got %d", cfg.ConcurrencyLimit)
	}
}

func TestLoadRejectsUnknownCloud(t *testing.T) {
	clearEnv(t, "CLOUD", "DISABLE_JWT_AUTH_INSECURE")
	os.Setenv("CLOUD", "Oracle")
	os.Setenv("DISABLE_JWT_AUTH_INSECURE", "true")

	_, err := Load()
	if apperrors.KindOf(err) != apperrors.Malformed {
		t.Fatalf("expected Malformed error, got %v", err)
	}
}

func TestLoadNeverRequiresJWTConfig(t *testing.T) {
	// cmd/runner loads Config without ever authenticating a router request, so Load
	// itself must succeed regardless of JWT settings; only
	// cmd/controlplane calls ValidateAuth.
	clearEnv(t, "DISABLE_JWT_AUTH_INSECURE", "JWT_ISSUER", "JWKS_URL", "JWT_SIGNING_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ValidateAuth(); apperrors.KindOf(err) != apperrors.Malformed {
		t.Fatalf("expected ValidateAuth to reject missing JWT config, got %v", err)
	}
}
