package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Login policies for ordinary users. PolicyPasswordAndOTP checks the stored
// password hash before a one-time code is mailed; PolicyOTPOnly mails the
// code as soon as the email is known.
const (
	PolicyPasswordAndOTP = "password_and_otp"
	PolicyOTPOnly        = "otp_only"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Operators OperatorsConfig `yaml:"operators"`
	Email     EmailConfig     `yaml:"email"`
	Payment   PaymentConfig   `yaml:"payment"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Name           string   `yaml:"name"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	OTPTTL          time.Duration `yaml:"otp_ttl"`
	UserLoginPolicy string        `yaml:"user_login_policy"`
}

// OperatorAccount is a fixed credential pair for a non-database role.
type OperatorAccount struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type OperatorsConfig struct {
	Admin      OperatorAccount `yaml:"admin"`
	Instructor OperatorAccount `yaml:"instructor"`
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type PaymentConfig struct {
	Currency string         `yaml:"currency"`
	Razorpay RazorpayConfig `yaml:"razorpay"`
}

type RazorpayConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
}

type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	UploadMaxBytes int64  `yaml:"upload_max_bytes"`
	ImageMaxEdge   int    `yaml:"image_max_edge"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from raw YAML, applying env overrides, validation
// and defaults in that order.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COURSEHUB_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("COURSEHUB_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("COURSEHUB_RAZORPAY_KEY_ID"); v != "" {
		c.Payment.Razorpay.KeyID = v
	}
	if v := os.Getenv("COURSEHUB_RAZORPAY_KEY_SECRET"); v != "" {
		c.Payment.Razorpay.KeySecret = v
	}
	if v := os.Getenv("COURSEHUB_ADMIN_PASSWORD"); v != "" {
		c.Operators.Admin.Password = v
	}
	if v := os.Getenv("COURSEHUB_INSTRUCTOR_PASSWORD"); v != "" {
		c.Operators.Instructor.Password = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Auth.UserLoginPolicy {
	case "", PolicyPasswordAndOTP, PolicyOTPOnly:
	default:
		return fmt.Errorf("auth.user_login_policy must be %q or %q", PolicyPasswordAndOTP, PolicyOTPOnly)
	}
	if c.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host is required")
	}
	if c.Email.SMTP.Port == 0 {
		return fmt.Errorf("email.smtp.port is required")
	}
	if c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required")
	}
	if c.Operators.Admin.Email == "" || c.Operators.Admin.Password == "" {
		return fmt.Errorf("operators.admin email and password are required")
	}
	if c.Operators.Instructor.Email == "" || c.Operators.Instructor.Password == "" {
		return fmt.Errorf("operators.instructor email and password are required")
	}
	if c.Payment.Razorpay.KeyID == "" || c.Payment.Razorpay.KeySecret == "" {
		return fmt.Errorf("payment.razorpay key_id and key_secret are required")
	}
	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must not be negative")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "CourseHub"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/coursehub.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.OTPTTL == 0 {
		c.Auth.OTPTTL = 5 * time.Minute
	}
	if c.Auth.UserLoginPolicy == "" {
		c.Auth.UserLoginPolicy = PolicyPasswordAndOTP
	}
	c.Operators.Admin.Email = strings.ToLower(strings.TrimSpace(c.Operators.Admin.Email))
	c.Operators.Instructor.Email = strings.ToLower(strings.TrimSpace(c.Operators.Instructor.Email))
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./uploads"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 512 << 20
	}
	if c.Storage.ImageMaxEdge == 0 {
		c.Storage.ImageMaxEdge = 1280
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
