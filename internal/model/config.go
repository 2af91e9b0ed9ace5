package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete claimlink configuration.
// It is built once at start-up and treated as read-only afterwards.
type Config struct {
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Extractor   ExtractorConfig   `yaml:"extractor" mapstructure:"extractor"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	AWS         AWSConfig         `yaml:"aws" mapstructure:"aws"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ScoringConfig configures the comparators, weights and classifier
type ScoringConfig struct {
	Weights             map[ErrorKind]float64 `yaml:"weights" mapstructure:"weights"`
	Reasons             map[ErrorKind]string  `yaml:"reasons" mapstructure:"reasons"`
	LowThreshold        float64               `yaml:"low_threshold" mapstructure:"low_threshold"`
	MediumThreshold     float64               `yaml:"medium_threshold" mapstructure:"medium_threshold"`
	AutoRejectAbove     float64               `yaml:"auto_reject_above" mapstructure:"auto_reject_above"` // 0 disables automatic rejection
	SimilarityThreshold float64               `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AuthenticityCutoff  float64               `yaml:"authenticity_cutoff" mapstructure:"authenticity_cutoff"`
}

// HTTPConfig configures outbound HTTP for extractors and document fetches
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ExtractorConfig configures the OCR extraction service
type ExtractorConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend           string        `yaml:"backend" mapstructure:"backend"` // http, textract
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per document
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec    float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	AirlineConfigPath string        `yaml:"airline_config_path" mapstructure:"airline_config_path"` // Overrides the built-in baggage tag patterns
	TicketLayoutPath  string        `yaml:"ticket_layout_path" mapstructure:"ticket_layout_path"`   // Overrides the built-in ticket regions (textract)
}

// CacheConfig configures caching of extraction results
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir      string        `yaml:"dir" mapstructure:"dir"`             // Disk layer, empty disables
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"` // Shared layer, empty disables
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers      int           `yaml:"workers" mapstructure:"workers"`
	ClaimTimeout time.Duration `yaml:"claim_timeout" mapstructure:"claim_timeout"`
}

// StoreConfig configures persistence of assessed claims
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LedgerConfig configures claim snapshot notarization
type LedgerConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// LLMConfig configures the optional reviewer note
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AWSConfig configures the S3 document source and the Textract extractor
type AWSConfig struct {
	Region          string `yaml:"region" mapstructure:"region"`
	Profile         string `yaml:"profile,omitempty" mapstructure:"profile"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	Endpoint        string `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // S3-compatible endpoint
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	JWTSecret    string        `yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"` // Empty disables bearer auth

	// Document URIs accepted from API submissions. Each empty value
	// disables its scheme.
	UploadsDir    string   `yaml:"uploads_dir" mapstructure:"uploads_dir"`       // file paths beneath this directory
	UploadHosts   []string `yaml:"upload_hosts" mapstructure:"upload_hosts"`     // http(s) hosts
	UploadBuckets []string `yaml:"upload_buckets" mapstructure:"upload_buckets"` // s3 buckets
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose   bool   `yaml:"verbose" mapstructure:"verbose"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"` // text, json
}

// DefaultWeights returns the canonical weight table
func DefaultWeights() map[ErrorKind]float64 {
	return map[ErrorKind]float64{
		ErrNameMismatch:               0.3,
		ErrDOBMismatch:                0.3,
		ErrGenderMismatch:             0.1,
		ErrExpiredPassport:            0.4,
		ErrNotAuthentic:               0.6,
		ErrUnrecognized:               0.5,
		ErrIncorrectFlightTicket:      0.1,
		ErrPersonalTicketNameMismatch: 0.2,
		ErrPassportTicketNameMismatch: 0.2,
		ErrIncorrectBaggageTag:        0.1,
		ErrAirlineNameMismatch:        0.15,
		ErrBookingReferenceMismatch:   0.2,
		ErrPassengerNameMismatch:      0.15,
		ErrInvalidEmiratesBarcode:     0.3,
	}
}

// DefaultReasons returns the human-readable reason for each error kind
func DefaultReasons() map[ErrorKind]string {
	return map[ErrorKind]string{
		ErrNameMismatch:               "Name on passport does not match the name provided",
		ErrDOBMismatch:                "Date of birth on passport does not match the date of birth provided",
		ErrGenderMismatch:             "Gender on passport does not match the gender provided",
		ErrExpiredPassport:            "Passport has expired",
		ErrNotAuthentic:               "Passport failed the authenticity check",
		ErrUnrecognized:               "Passport could not be recognized",
		ErrIncorrectFlightTicket:      "Flight ticket could not be read",
		ErrPersonalTicketNameMismatch: "Name on flight ticket does not match the name provided",
		ErrPassportTicketNameMismatch: "Name on flight ticket does not match the name on passport",
		ErrIncorrectBaggageTag:        "Baggage tag could not be read",
		ErrAirlineNameMismatch:        "Airline on baggage tag does not match the flight ticket",
		ErrBookingReferenceMismatch:   "Booking reference on baggage tag does not match the flight ticket",
		ErrPassengerNameMismatch:      "Passenger name on baggage tag does not match the flight ticket",
		ErrInvalidEmiratesBarcode:     "Emirates baggage tag barcode is invalid",
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Scoring: ScoringConfig{
			Weights:             DefaultWeights(),
			Reasons:             DefaultReasons(),
			LowThreshold:        0.2,
			MediumThreshold:     0.5,
			SimilarityThreshold: 80,
			AuthenticityCutoff:  0.5,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "claimlink/0.1 (+https://github.com/ppiankov/claimlink)",
			MaxBodyBytes:  10_000_000,
			RespectRobots: true,
		},
		Extractor: ExtractorConfig{
			Backend:        "http",
			Timeout:        45 * time.Second,
			MaxRetries:     2,
			RequestsPerSec: 2,
			Burst:          4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			ClaimTimeout: 3 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Ledger: LedgerConfig{
			Topic: "claimlink.claims.notarized",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   600,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		AWS: AWSConfig{
			Region: "us-west-2",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Output: OutputConfig{
			LogFormat: "text",
		},
	}
}

// Validate checks the configuration for values that would make scoring
// undefined. It is called once at start-up.
func (c Config) Validate() error {
	var errs []error
	for _, kind := range ErrorKinds {
		w, ok := c.Scoring.Weights[kind]
		if !ok {
			errs = append(errs, fmt.Errorf("scoring.weights: missing weight for %q", kind))
			continue
		}
		if w <= 0 {
			errs = append(errs, fmt.Errorf("scoring.weights: weight for %q must be positive, got %v", kind, w))
		}
	}
	for kind, w := range c.Scoring.Weights {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("scoring.weights: weight for %q must be positive, got %v", kind, w))
		}
	}
	if c.Scoring.LowThreshold <= 0 || c.Scoring.MediumThreshold <= c.Scoring.LowThreshold {
		errs = append(errs, fmt.Errorf("scoring: thresholds must ascend (low=%v, medium=%v)",
			c.Scoring.LowThreshold, c.Scoring.MediumThreshold))
	}
	if c.Scoring.AutoRejectAbove != 0 && c.Scoring.AutoRejectAbove <= c.Scoring.MediumThreshold {
		errs = append(errs, fmt.Errorf("scoring.auto_reject_above must exceed medium_threshold (%v)", c.Scoring.MediumThreshold))
	}
	if c.Scoring.SimilarityThreshold < MinRawScore || c.Scoring.SimilarityThreshold > MaxRawScore {
		errs = append(errs, fmt.Errorf("scoring.similarity_threshold must be within [0,100], got %v", c.Scoring.SimilarityThreshold))
	}
	if c.Scoring.AuthenticityCutoff < 0 || c.Scoring.AuthenticityCutoff > 1 {
		errs = append(errs, fmt.Errorf("scoring.authenticity_cutoff must be within [0,1], got %v", c.Scoring.AuthenticityCutoff))
	}
	switch c.Extractor.Backend {
	case "http", "textract":
	default:
		errs = append(errs, fmt.Errorf("extractor.backend: unknown backend %q", c.Extractor.Backend))
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Ledger.Enabled && len(c.Ledger.Brokers) == 0 {
		errs = append(errs, errors.New("ledger.brokers: at least one broker required when ledger is enabled"))
	}
	return errors.Join(errs...)
}
