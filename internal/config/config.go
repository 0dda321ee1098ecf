package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"safedrop-backend/internal/filetype"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// DevEncryptionKey is used outside production when ENCRYPTION_KEY is unset.
const DevEncryptionKey = "dev-encryption-key-change-in-production"

// ErrConfiguration wraps every configuration validation failure
var ErrConfiguration = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Env        string        `envconfig:"APP_ENV" default:"development"`
	ServerPort int           `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"` // postgres | memory
	DatabaseURL string `envconfig:"DATABASE_URL"`

	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`

	BlobBackend   string `envconfig:"BLOB_BACKEND" default:"local"` // local | s3
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	AWSBucketName string `envconfig:"AWS_BUCKET_NAME"`
	AWSRegion     string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint   string `envconfig:"AWS_ENDPOINT"`
	AWSAccessKey  string `envconfig:"S3_ACCESS_KEY"`
	AWSSecretKey  string `envconfig:"S3_SECRET_KEY"`

	AllowedExtensions []string `envconfig:"ALLOWED_EXTENSIONS"`
	BlockedExtensions []string `envconfig:"BLOCKED_EXTENSIONS"`
	MaxContentLength  int64    `envconfig:"MAX_CONTENT_LENGTH" default:"52428800"` // 50MB
	UploadPolicyFile  string   `envconfig:"UPLOAD_POLICY_FILE"`

	AllowRegistration  bool     `envconfig:"ALLOW_REGISTRATION" default:"true"`
	PublicBaseURL      string   `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	devEncryptionKey bool
}

// uploadPolicyFile is the YAML overlay read from UPLOAD_POLICY_FILE
type uploadPolicyFile struct {
	Upload struct {
		AllowedExtensions []string `yaml:"allowed_extensions"`
		BlockedExtensions []string `yaml:"blocked_extensions"`
		MaxFileSize       int64    `yaml:"max_file_size"`
	} `yaml:"upload"`
}

// Load reads the configuration from environment variables, applies the
// optional YAML upload policy and validates the result
func Load(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if cfg.UploadPolicyFile != "" {
		if err := cfg.applyPolicyFile(cfg.UploadPolicyFile); err != nil {
			return err
		}
	}

	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = append([]string(nil), filetype.DefaultAllowedExtensions...)
	}
	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	cfg.BlockedExtensions = normalizeExtensions(cfg.BlockedExtensions)

	if cfg.EncryptionKey == "" && cfg.Env != EnvProduction {
		cfg.EncryptionKey = DevEncryptionKey
		cfg.devEncryptionKey = true
	}

	return cfg.Validate()
}

// Validate checks cross-field rules that envconfig cannot express
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("%w: APP_ENV must be development, production or testing, got %q", ErrConfiguration, c.Env)
	}

	if c.EncryptionKey == "" {
		return fmt.Errorf("%w: ENCRYPTION_KEY is required in production", ErrConfiguration)
	}
	if c.Env == EnvProduction && c.EncryptionKey == DevEncryptionKey {
		return fmt.Errorf("%w: ENCRYPTION_KEY must not use the development default in production", ErrConfiguration)
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrConfiguration)
		}
	case "memory":
		if c.Env == EnvProduction {
			return fmt.Errorf("%w: the memory store is not allowed in production", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrConfiguration, c.StoreDriver)
	}

	switch c.BlobBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("%w: UPLOAD_DIR is required for the local blob backend", ErrConfiguration)
		}
	case "s3":
		if c.AWSBucketName == "" {
			return fmt.Errorf("%w: AWS_BUCKET_NAME is required for the s3 blob backend", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown BLOB_BACKEND %q", ErrConfiguration, c.BlobBackend)
	}

	if c.MaxContentLength <= 0 {
		return fmt.Errorf("%w: MAX_CONTENT_LENGTH must be positive", ErrConfiguration)
	}

	return nil
}

// UsesDevEncryptionKey reports whether Load fell back to DevEncryptionKey
func (c *Config) UsesDevEncryptionKey() bool {
	return c.devEncryptionKey
}

// UploadPolicy returns the admission policy for uploads
func (c *Config) UploadPolicy() filetype.Policy {
	return filetype.Policy{
		Allowed:     c.AllowedExtensions,
		Blocked:     c.BlockedExtensions,
		MaxFileSize: c.MaxContentLength,
	}
}

func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read upload policy %s: %v", ErrConfiguration, path, err)
	}

	var p uploadPolicyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: parse upload policy %s: %v", ErrConfiguration, path, err)
	}

	if len(p.Upload.AllowedExtensions) > 0 {
		c.AllowedExtensions = p.Upload.AllowedExtensions
	}
	if len(p.Upload.BlockedExtensions) > 0 {
		c.BlockedExtensions = p.Upload.BlockedExtensions
	}
	if p.Upload.MaxFileSize > 0 {
		c.MaxContentLength = p.Upload.MaxFileSize
	}
	return nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
