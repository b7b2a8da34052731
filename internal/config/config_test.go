package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
operators:
  admin: {email: " Admin@Example.com ", password: "admin-pass"}
  instructor: {email: "teach@example.com", password: "teach-pass"}
email:
  smtp: {host: "smtp.example.com", port: 587, from: "noreply@example.com"}
payment:
  razorpay: {key_id: "rzp_test_key", key_secret: "rzp_test_secret"}
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Auth.TokenTTL != time.Hour {
		t.Fatalf("TokenTTL = %s, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.OTPTTL != 5*time.Minute {
		t.Fatalf("OTPTTL = %s, want 5m", cfg.Auth.OTPTTL)
	}
	if cfg.Auth.UserLoginPolicy != PolicyPasswordAndOTP {
		t.Fatalf("UserLoginPolicy = %q, want %q", cfg.Auth.UserLoginPolicy, PolicyPasswordAndOTP)
	}
	if cfg.Payment.Currency != "INR" {
		t.Fatalf("Currency = %q, want INR", cfg.Payment.Currency)
	}
	if cfg.Operators.Admin.Email != "admin@example.com" {
		t.Fatalf("Admin.Email = %q, want normalized address", cfg.Operators.Admin.Email)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("Addr() = %q, want 0.0.0.0:8080", cfg.Addr())
	}
}

func TestParseEnvOverridesSecrets(t *testing.T) {
	t.Setenv("COURSEHUB_RAZORPAY_KEY_SECRET", "from-env")
	t.Setenv("COURSEHUB_ADMIN_PASSWORD", "env-admin")

	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Payment.Razorpay.KeySecret != "from-env" {
		t.Fatalf("KeySecret = %q, want from-env", cfg.Payment.Razorpay.KeySecret)
	}
	if cfg.Operators.Admin.Password != "env-admin" {
		t.Fatalf("Admin.Password = %q, want env-admin", cfg.Operators.Admin.Password)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "short_secret",
			mutate:  func(s string) string { return strings.Replace(s, "0123456789abcdef0123456789abcdef", "short", 1) },
			wantErr: "at least 32 characters",
		},
		{
			name:    "unknown_policy",
			mutate:  func(s string) string { return strings.Replace(s, "auth:\n", "auth:\n  user_login_policy: \"magic\"\n", 1) },
			wantErr: "user_login_policy",
		},
		{
			name:    "missing_gateway_secret",
			mutate:  func(s string) string { return strings.Replace(s, `key_secret: "rzp_test_secret"`, `key_secret: ""`, 1) },
			wantErr: "payment.razorpay",
		},
		{
			name:    "missing_instructor",
			mutate:  func(s string) string { return strings.Replace(s, `password: "teach-pass"`, `password: ""`, 1) },
			wantErr: "operators.instructor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(validYAML)))
			if err == nil {
				t.Fatal("Parse() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
