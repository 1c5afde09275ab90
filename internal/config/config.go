// Package config provides configuration loading and validation for the
// ledger gateway. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the gateway server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Fabric network
	MSPID              string `koanf:"msp_id"`
	WalletDir          string `koanf:"wallet_dir"`
	PeerEndpoint       string `koanf:"peer_endpoint"`
	GatewayPeer        string `koanf:"gateway_peer"`
	TLSCertPath        string `koanf:"tls_cert_path"`
	Channel            string `koanf:"channel"`
	Chaincode          string `koanf:"chaincode"`
	DiscoveryEnabled   bool   `koanf:"discovery_enabled"`
	DiscoveryLocalhost bool   `koanf:"discovery_as_localhost"`

	// Ledger call deadlines
	EvaluateTimeout     time.Duration `koanf:"evaluate_timeout"`
	EndorseTimeout      time.Duration `koanf:"endorse_timeout"`
	SubmitTimeout       time.Duration `koanf:"submit_timeout"`
	CommitStatusTimeout time.Duration `koanf:"commit_status_timeout"`

	// JWT Authentication (optional; empty secret disables token auth)
	JWTSecret string `koanf:"jwt_secret"`

	// Redis (optional; empty URL falls back to in-memory rate limiting)
	RedisURL string `koanf:"redis_url"`

	// Tracing
	TracingEnabled  bool    `koanf:"tracing_enabled"`
	TracingExporter string  `koanf:"tracing_exporter"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	SamplingRate    float64 `koanf:"sampling_rate"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingMSPID        = errors.New("MSP_ID is required")
	ErrMissingWalletDir    = errors.New("WALLET_DIR is required")
	ErrMissingPeerEndpoint = errors.New("PEER_ENDPOINT is required")
	ErrMissingGatewayPeer  = errors.New("GATEWAY_PEER is required")
	ErrMissingTLSCertPath  = errors.New("TLS_CERT_PATH is required")
	ErrMissingChannel      = errors.New("CHANNEL must not be empty")
	ErrMissingChaincode    = errors.New("CHAINCODE must not be empty")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate = errors.New("SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort         = 8080
	DefaultEnv          = "development"
	DefaultChannel      = "mychannel"
	DefaultChaincode    = "trapeze"
	DefaultGatewayPeer  = "peer0.org1.example.com"
	DefaultSamplingRate = 0.1

	DefaultEvaluateTimeout     = 5 * time.Second
	DefaultEndorseTimeout      = 15 * time.Second
	DefaultSubmitTimeout       = 5 * time.Second
	DefaultCommitStatusTimeout = time.Minute
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// File values load first so env vars win
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	samplingRate, rateErr := getEnvFloatOrDefault("SAMPLING_RATE", k.Float64("sampling_rate"), DefaultSamplingRate)
	if rateErr != nil {
		loadErrs = append(loadErrs, rateErr)
	}

	cfg := &Config{
		Port: port,
		Env:  getEnvOrDefault("ENV", k.String("env"), DefaultEnv),

		MSPID:              getEnvOrKoanf("MSP_ID", k, "msp_id"),
		WalletDir:          getEnvOrKoanf("WALLET_DIR", k, "wallet_dir"),
		PeerEndpoint:       getEnvOrKoanf("PEER_ENDPOINT", k, "peer_endpoint"),
		GatewayPeer:        getEnvOrDefault("GATEWAY_PEER", k.String("gateway_peer"), DefaultGatewayPeer),
		TLSCertPath:        getEnvOrKoanf("TLS_CERT_PATH", k, "tls_cert_path"),
		Channel:            getEnvOrDefault("CHANNEL", k.String("channel"), DefaultChannel),
		Chaincode:          getEnvOrDefault("CHAINCODE", k.String("chaincode"), DefaultChaincode),
		DiscoveryEnabled:   getEnvBoolOrDefault("DISCOVERY_ENABLED", k, "discovery_enabled", true),
		DiscoveryLocalhost: getEnvBoolOrDefault("DISCOVERY_AS_LOCALHOST", k, "discovery_as_localhost", true),

		EvaluateTimeout:     getEnvDurationOrDefault("EVALUATE_TIMEOUT", k, "evaluate_timeout", DefaultEvaluateTimeout, &loadErrs),
		EndorseTimeout:      getEnvDurationOrDefault("ENDORSE_TIMEOUT", k, "endorse_timeout", DefaultEndorseTimeout, &loadErrs),
		SubmitTimeout:       getEnvDurationOrDefault("SUBMIT_TIMEOUT", k, "submit_timeout", DefaultSubmitTimeout, &loadErrs),
		CommitStatusTimeout: getEnvDurationOrDefault("COMMIT_STATUS_TIMEOUT", k, "commit_status_timeout", DefaultCommitStatusTimeout, &loadErrs),

		JWTSecret: getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		RedisURL:  getEnvOrKoanf("REDIS_URL", k, "redis_url"),

		TracingEnabled:  getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter: getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), "otlp-grpc"),
		OTLPEndpoint:    getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		SamplingRate:    samplingRate,
		OTLPInsecure:    getEnvBoolOrDefault("OTLP_INSECURE", k, "otlp_insecure", true),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault returns the environment variable as bool if set,
// otherwise the koanf value if present, or default.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvDurationOrDefault returns the environment variable as a duration if
// set, otherwise the koanf value, or default. Parse failures are appended
// to errs.
func getEnvDurationOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal time.Duration, errs *[]error) time.Duration {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s must be a valid duration: %w", envKey, err))
			return defaultVal
		}
		return d
	}
	if k.Exists(koanfKey) {
		return k.Duration(koanfKey)
	}
	return defaultVal
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.MSPID == "" {
		errs = append(errs, ErrMissingMSPID)
	}
	if c.WalletDir == "" {
		errs = append(errs, ErrMissingWalletDir)
	}
	if c.PeerEndpoint == "" {
		errs = append(errs, ErrMissingPeerEndpoint)
	}
	if c.GatewayPeer == "" {
		errs = append(errs, ErrMissingGatewayPeer)
	}
	if c.TLSCertPath == "" {
		errs = append(errs, ErrMissingTLSCertPath)
	}
	if c.Channel == "" {
		errs = append(errs, ErrMissingChannel)
	}
	if c.Chaincode == "" {
		errs = append(errs, ErrMissingChaincode)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// AuthEnabled reports whether token authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"msp_id":                 c.MSPID,
		"wallet_dir":             c.WalletDir,
		"peer_endpoint":          c.PeerEndpoint,
		"gateway_peer":           c.GatewayPeer,
		"tls_cert_path":          c.TLSCertPath,
		"channel":                c.Channel,
		"chaincode":              c.Chaincode,
		"discovery_enabled":      fmt.Sprintf("%t", c.DiscoveryEnabled),
		"discovery_as_localhost": fmt.Sprintf("%t", c.DiscoveryLocalhost),
		"evaluate_timeout":       c.EvaluateTimeout.String(),
		"endorse_timeout":        c.EndorseTimeout.String(),
		"submit_timeout":         c.SubmitTimeout.String(),
		"commit_status_timeout":  c.CommitStatusTimeout.String(),
		"jwt_secret":             maskSecret(c.JWTSecret),
		"redis_url":              maskRedisURL(c.RedisURL),
		"tracing_enabled":        fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":       c.TracingExporter,
		"otlp_endpoint":          c.OTLPEndpoint,
		"sampling_rate":          fmt.Sprintf("%g", c.SamplingRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskRedisURL masks the password in a redis:// URL.
func maskRedisURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
