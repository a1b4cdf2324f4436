package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Portals  PortalsConfig  `yaml:"portals"`
	Netlife  NetlifeConfig  `yaml:"netlife"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PortalsConfig holds the portal allow-list and the portals selected for a run.
type PortalsConfig struct {
	// Allowed maps portal key → API base URL. Only allowed portals may be selected.
	Allowed map[string]string `yaml:"allowed"`
	// Selected is the list of portal keys to process this run.
	Selected []string `yaml:"selected"`
}

// NetlifeConfig holds portal API credentials and HTTP behavior.
type NetlifeConfig struct {
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SecretARN       string `yaml:"secret_arn"` // AWS Secrets Manager ARN; used when username is empty
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Retries         int    `yaml:"retries"`
	RetryBaseMillis int    `yaml:"retry_base_millis"`
	RetryCapSeconds int    `yaml:"retry_cap_seconds"`
}

// Timeout returns the configured request timeout as a duration
func (c NetlifeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBase returns the backoff base delay as a duration
func (c NetlifeConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMillis) * time.Millisecond
}

// RetryCap returns the backoff cap delay as a duration
func (c NetlifeConfig) RetryCap() time.Duration {
	return time.Duration(c.RetryCapSeconds) * time.Second
}

// PipelineConfig holds campaign pipeline behavior. It is read-only once the
// run starts; the pipeline never mutates it.
type PipelineConfig struct {
	Concurrency          int    `yaml:"concurrency"`            // max in-flight portal requests, shared across portals
	Audience             string `yaml:"audience"`               // "buyers", "non-buyers", "both"
	ContactFilter        string `yaml:"contact_filter"`         // "phone-only", "email-only", "any"
	CheckRegisteredUsers bool   `yaml:"check_registered_users"` // bulk-resolve registered user mappings
	RegisteredOnly       bool   `yaml:"registered_only"`        // drop subjects without a registered user
	ProfileBatchSize     int    `yaml:"profile_batch_size"`     // bulk user-profile chunk size
	TargetStatus         string `yaml:"target_status"`          // activity status that makes a job eligible
}

// OutputConfig holds output destination and format.
type OutputConfig struct {
	Path      string `yaml:"path"`   // file path, s3://bucket/key, or empty for stdout
	Format    string `yaml:"format"` // "csv" or "json"
	S3Region  string `yaml:"s3_region"`
	KMSKeyID  string `yaml:"kms_key_id"`
	AWSRegion string `yaml:"aws_region"` // region for Secrets Manager; falls back to s3_region
}

// LoggingConfig holds log verbosity and redaction behavior.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// TargetStatusDefault is the job status that makes activities eligible for
// an SMS campaign.
const TargetStatusDefault = "webshop (selling)"

// defaultAllowedPortals is the built-in portal allow-list.
var defaultAllowedPortals = map[string]string{
	"nowandforeverphoto":  "https://nowandforeverphoto.shop/api/v1",
	"legacyseniorphotos":  "https://legacyseniorphotos.shop/api/v1",
	"legacyphoto":         "https://legacyphoto.shop/api/v1",
	"generationsphotos":   "https://generationsphotos.shop/api/v1",
	"nowandgen":           "https://nowandgen.shop/api/v1",
	"legacyphotos":        "https://legacyphotos.shop/api/v1",
	"westpointportraits":  "https://westpointportraits.shop/api/v1",
	"midshipmenportraits": "https://midshipmenportraits.shop/api/v1",
	"coastguardportraits": "https://coastguardportraits.shop/api/v1",
}

var generationsPortals = map[string]bool{
	"nowandforeverphoto": true,
	"generationsphotos":  true,
	"nowandgen":          true,
}

var legacyPortals = map[string]bool{
	"legacyseniorphotos":  true,
	"legacyphoto":         true,
	"legacyphotos":        true,
	"westpointportraits":  true,
	"midshipmenportraits": true,
	"coastguardportraits": true,
}

// PortalBrand returns the brand a portal belongs to: "Generations", "Legacy",
// or "Unknown".
func PortalBrand(portalKey string) string {
	switch {
	case generationsPortals[portalKey]:
		return "Generations"
	case legacyPortals[portalKey]:
		return "Legacy"
	default:
		return "Unknown"
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Portals.Allowed) == 0 {
		cfg.Portals.Allowed = defaultAllowedPortals
	}
	if cfg.Netlife.TimeoutSeconds == 0 {
		cfg.Netlife.TimeoutSeconds = 30
	}
	if cfg.Netlife.Retries == 0 {
		cfg.Netlife.Retries = 3
	}
	if cfg.Netlife.RetryBaseMillis == 0 {
		cfg.Netlife.RetryBaseMillis = 200
	}
	if cfg.Netlife.RetryCapSeconds == 0 {
		cfg.Netlife.RetryCapSeconds = 12
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 5
	}
	if cfg.Pipeline.Audience == "" {
		cfg.Pipeline.Audience = "both"
	}
	if cfg.Pipeline.ContactFilter == "" {
		cfg.Pipeline.ContactFilter = "any"
	}
	if cfg.Pipeline.ProfileBatchSize == 0 {
		cfg.Pipeline.ProfileBatchSize = 500
	}
	if cfg.Pipeline.TargetStatus == "" {
		cfg.Pipeline.TargetStatus = TargetStatusDefault
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "csv"
	}
	if cfg.Output.S3Region == "" {
		cfg.Output.S3Region = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		// Env-only deployments carry no config file; defaults plus env
		// overrides are a complete configuration.
		cfg = &Config{}
		applyDefaults(cfg)
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("NETLIFE_USERNAME"); v != "" {
		cfg.Netlife.Username = v
	}
	if v := os.Getenv("NETLIFE_PASSWORD"); v != "" {
		cfg.Netlife.Password = v
	}
	if v := os.Getenv("NETLIFE_SECRET_ARN"); v != "" {
		cfg.Netlife.SecretARN = v
	}
	if v := os.Getenv("PORTALS"); v != "" {
		cfg.Portals.Selected = splitCSV(v)
	}
	if v := os.Getenv("CAMPAIGN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Concurrency = n
		}
	}
	if v := os.Getenv("CAMPAIGN_AUDIENCE"); v != "" {
		cfg.Pipeline.Audience = v
	}
	if v := os.Getenv("CAMPAIGN_CONTACT_FILTER"); v != "" {
		cfg.Pipeline.ContactFilter = v
	}
	if v := os.Getenv("OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("AWS_KMS_KEY_ID"); v != "" {
		cfg.Output.KMSKeyID = v
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration before any network call is made.
// These are the only fatal errors in a run.
func (c *Config) Validate() error {
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be >= 1, got %d", c.Pipeline.Concurrency)
	}
	if len(c.Portals.Selected) == 0 {
		return fmt.Errorf("no portals selected: set portals.selected or the PORTALS env var")
	}
	for _, key := range c.Portals.Selected {
		if _, ok := c.Portals.Allowed[key]; !ok {
			return fmt.Errorf("portal %q is not in the allow-list", key)
		}
	}
	switch c.Pipeline.Audience {
	case "buyers", "non-buyers", "both":
	default:
		return fmt.Errorf("pipeline.audience must be one of buyers, non-buyers, both; got %q", c.Pipeline.Audience)
	}
	switch c.Pipeline.ContactFilter {
	case "phone-only", "email-only", "any":
	default:
		return fmt.Errorf("pipeline.contact_filter must be one of phone-only, email-only, any; got %q", c.Pipeline.ContactFilter)
	}
	switch c.Output.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("output.format must be csv or json, got %q", c.Output.Format)
	}
	return nil
}
