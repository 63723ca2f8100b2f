//go:build !integration

package config

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("should apply defaults in dev mode", func(t *testing.T) {
		cfg, err := Parse([]byte("auth:\n  jwt_secret: s\n"), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Payment.Provider != "noop" {
			t.Errorf("expected noop provider in dev, got %q", cfg.Payment.Provider)
		}
		if cfg.Payment.OrphanWindow != 15*time.Minute {
			t.Errorf("unexpected orphan window %v", cfg.Payment.OrphanWindow)
		}
		if !cfg.Engine.Lenient() {
			t.Error("expected lenient fallback to default on")
		}
		if cfg.HTTP.Port != 8080 {
			t.Errorf("unexpected port %d", cfg.HTTP.Port)
		}
	})

	t.Run("should honour explicit lenient_fallback false", func(t *testing.T) {
		cfg, err := Parse([]byte("auth:\n  jwt_secret: s\nengine:\n  lenient_fallback: false\n"), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Engine.Lenient() {
			t.Error("expected lenient fallback off")
		}
	})

	t.Run("should require database outside dev", func(t *testing.T) {
		src := "auth:\n  jwt_secret: s\npayment:\n  key_id: k\n  key_secret: x\n"
		if _, err := Parse([]byte(src), false); err == nil {
			t.Fatal("expected error for missing database.url")
		}
	})

	t.Run("should require razorpay credentials", func(t *testing.T) {
		src := "auth:\n  jwt_secret: s\npayment:\n  provider: razorpay\n"
		if _, err := Parse([]byte(src), true); err == nil {
			t.Fatal("expected error for missing key pair")
		}
	})

	t.Run("should reject unknown provider", func(t *testing.T) {
		src := "auth:\n  jwt_secret: s\npayment:\n  provider: paypal\n"
		if _, err := Parse([]byte(src), true); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})
}
