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
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the talentdex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Cards     CardsConfig     `yaml:"cards"`
	Credits   CreditsConfig   `yaml:"credits"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	LeewaySec int    `yaml:"leeway_sec"`
}

// Leeway returns the clock skew tolerance.
func (a AuthConfig) Leeway() time.Duration {
	return time.Duration(a.LeewaySec) * time.Second
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Redis connection that backs the card index.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DialTimeoutMs    int      `yaml:"dial_timeout_ms"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SQLiteConfig holds the relational store settings.
type SQLiteConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMs int    `yaml:"busy_timeout_ms"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int `yaml:"hnsw_ef_runtime"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds the provider and the vector schema.
type EmbeddingConfig struct {
	Provider            ProviderConfig `yaml:"provider"`
	Model               string         `yaml:"model"`
	SchemaVersion       int            `yaml:"schema_version"`
	Dimensions          int            `yaml:"dimensions"`
	DocumentInstruction string         `yaml:"document_instruction"`
	QueryInstruction    string         `yaml:"query_instruction"`
	CacheTTLHours       int            `yaml:"cache_ttl_hours"`
	Budget              BudgetConfig   `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64   `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64   `yaml:"monthly_token_limit"` // 0 = unlimited
	CardShare         float64 `yaml:"card_share"`          // fraction of each limit card ingest may use, 0 = no cap
	Action            string  `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// ProviderConfig holds the OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SearchConfig tunes retrieval and ranking.
type SearchConfig struct {
	CandidateLimit   int           `yaml:"candidate_limit"`
	ResultLimit      int           `yaml:"result_limit"`
	ChannelTimeoutMs int           `yaml:"channel_timeout_ms"`
	MinSimilarity    float64       `yaml:"min_similarity"`
	FuzzyThreshold   float64       `yaml:"fuzzy_threshold"`
	TieEpsilon       float64       `yaml:"tie_epsilon"`
	Weights          WeightsConfig `yaml:"weights"`
	Domains          []string      `yaml:"domains"`
	Explain          ExplainConfig `yaml:"explain"`
}

// WeightsConfig holds the per-channel fusion weights. Zero everywhere means defaults.
type WeightsConfig struct {
	Vector  float64 `yaml:"vector"`
	Lexical float64 `yaml:"lexical"`
	Fuzzy   float64 `yaml:"fuzzy"`
	Filter  float64 `yaml:"filter"`
	Should  float64 `yaml:"should"`
}

// ExplainConfig controls "why matched" explanations.
type ExplainConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"` // empty: template explanations only
	TopN      int    `yaml:"top_n"`
	PoolSize  int    `yaml:"pool_size"`
	TimeoutMs int    `yaml:"timeout_ms"`
	MaxTokens int    `yaml:"max_tokens"`
}

// CardsConfig holds card write settings.
type CardsConfig struct {
	ImportPoolSize int `yaml:"import_pool_size"`
}

// CreditsConfig holds unlock pricing.
type CreditsConfig struct {
	UnlockCost      int64 `yaml:"unlock_cost"`
	UnlockTimeoutMs int   `yaml:"unlock_timeout_ms"`
}

// TelemetryConfig holds the OTLP trace exporter settings.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"` // empty disables tracing
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads ./.env into the process environment if present.
// Variables already set are not overridden.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "talentdex.db"
	}
	if c.SQLite.BusyTimeoutMs <= 0 {
		c.SQLite.BusyTimeoutMs = 5000
	}
	if c.SQLite.MaxOpenConns <= 0 {
		c.SQLite.MaxOpenConns = 4
	}
	if c.Embedding.Provider.Name == "" {
		c.Embedding.Provider.Name = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.SchemaVersion <= 0 {
		c.Embedding.SchemaVersion = 1
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 30 * 24
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.HNSWEFRuntime <= 0 {
		c.Index.HNSWEFRuntime = 10
	}
	if c.Search.CandidateLimit <= 0 {
		c.Search.CandidateLimit = 100
	}
	if c.Search.ResultLimit <= 0 {
		c.Search.ResultLimit = 20
	}
	if c.Search.ChannelTimeoutMs <= 0 {
		c.Search.ChannelTimeoutMs = 800
	}
	if c.Search.Explain.TopN <= 0 {
		c.Search.Explain.TopN = 5
	}
	if c.Search.Explain.PoolSize <= 0 {
		c.Search.Explain.PoolSize = 4
	}
	if c.Search.Explain.TimeoutMs <= 0 {
		c.Search.Explain.TimeoutMs = 2000
	}
	if c.Search.Explain.MaxTokens <= 0 {
		c.Search.Explain.MaxTokens = 80
	}
	if c.Cards.ImportPoolSize <= 0 {
		c.Cards.ImportPoolSize = 4
	}
	if c.Credits.UnlockCost <= 0 {
		c.Credits.UnlockCost = 1
	}
	if c.Credits.UnlockTimeoutMs <= 0 {
		c.Credits.UnlockTimeoutMs = 5000
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "talentdex"
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 1
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "talentdex:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if s := c.Embedding.Budget.CardShare; s < 0 || s > 1 {
		return fmt.Errorf("embedding.budget.card_share must be within [0, 1], got %v", s)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be within [0, 1], got %v", c.Search.MinSimilarity)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		return fmt.Errorf("search.fuzzy_threshold must be within [0, 1], got %v", c.Search.FuzzyThreshold)
	}
	w := c.Search.Weights
	for name, v := range map[string]float64{
		"vector": w.Vector, "lexical": w.Lexical, "fuzzy": w.Fuzzy, "filter": w.Filter, "should": w.Should,
	} {
		if v < 0 {
			return fmt.Errorf("search.weights.%s must not be negative, got %v", name, v)
		}
	}
	if c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be at most 1, got %v", c.Telemetry.SampleRatio)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
