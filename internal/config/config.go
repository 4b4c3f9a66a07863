package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// Database drivers for the project vector store.
const (
	DriverRedis  = "redis"
	DriverQdrant = "qdrant"
)

// Session backends.
const (
	SessionsRedis    = "redis"
	SessionsPostgres = "postgres"
)

// Config holds the simproj API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Bulk      BulkConfig      `yaml:"bulk"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty disables auth
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds store connection settings. Redis is always used for
// key-value data; Driver picks the project vector store.
type DatabaseConfig struct {
	Driver           string       `yaml:"driver"` // redis, qdrant (default: redis)
	Addrs            []string     `yaml:"addrs"`
	Username         string       `yaml:"username"`
	Password         string       `yaml:"password"`
	DB               int          `yaml:"db"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Qdrant           QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	TLS        bool   `yaml:"tls"`
}

// SessionsConfig selects where sessions are read from.
type SessionsConfig struct {
	Backend     string `yaml:"backend"` // redis, postgres (default: redis)
	PostgresDSN string `yaml:"postgres_dsn"`
	MaxConns    int32  `yaml:"max_conns"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	EFRuntime       int `yaml:"ef_runtime"`
}

// BulkConfig limits CSV imports.
type BulkConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxRows        int   `yaml:"max_rows"`
	EmbedBatchSize int   `yaml:"embed_batch_size"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider     string       `yaml:"provider"` // metrics and budget label
	BaseURL      string       `yaml:"base_url"`
	APIKey       string       `yaml:"api_key"`
	Model        string       `yaml:"model"`
	Dimensions   int          `yaml:"dimensions"`
	Instruction  string       `yaml:"instruction"`
	TimeoutSec   int          `yaml:"timeout_sec"`
	MaxBatchSize int          `yaml:"max_batch_size"`
	Cache        CacheConfig  `yaml:"cache"`
	Budget       BudgetConfig `yaml:"budget"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"` // 0 = no expiry
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// applyEnvOverrides honours the plain ALLOWED_ORIGINS and MODEL_NAME variables
// when the file leaves those settings empty.
func (c *Config) applyEnvOverrides() {
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = os.Getenv("MODEL_NAME")
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Qdrant.Port <= 0 {
		c.Database.Qdrant.Port = 6334
	}
	if c.Database.Qdrant.Collection == "" {
		c.Database.Qdrant.Collection = "projects"
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = SessionsRedis
	}

	vc := domain.DefaultVectorConfig()
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = vc.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vc.Dimensions
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}

	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = vc.M
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = vc.EFConstruct
	}
	if c.Index.EFRuntime <= 0 {
		c.Index.EFRuntime = vc.EFRuntime
	}
	if c.Bulk.MaxUploadBytes <= 0 {
		c.Bulk.MaxUploadBytes = 10 << 20
	}
	if c.Bulk.MaxRows <= 0 {
		c.Bulk.MaxRows = 5000
	}
	if c.Bulk.EmbedBatchSize <= 0 {
		c.Bulk.EmbedBatchSize = 64
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "simproj:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	// An empty list would let the CORS layer accept every origin.
	if len(c.HTTP.AllowedOrigins) == 0 {
		return fmt.Errorf("http.allowed_origins (or ALLOWED_ORIGINS) is required; use \"*\" to allow any origin")
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case DriverRedis:
	case DriverQdrant:
		if c.Database.Qdrant.Host == "" {
			return fmt.Errorf("database.qdrant.host is required for driver %q", DriverQdrant)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverQdrant, c.Database.Driver)
	}
	switch c.Sessions.Backend {
	case SessionsRedis:
	case SessionsPostgres:
		if c.Sessions.PostgresDSN == "" {
			return fmt.Errorf("sessions.postgres_dsn is required for backend %q", SessionsPostgres)
		}
	default:
		return fmt.Errorf("sessions.backend must be %q or %q, got %q",
			SessionsRedis, SessionsPostgres, c.Sessions.Backend)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if !strings.HasSuffix(c.Storage.KeyPrefix, ":") {
		return fmt.Errorf("storage.key_prefix must end with \":\", got %q", c.Storage.KeyPrefix)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
