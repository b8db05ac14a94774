package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the driftguard engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	Reference ReferenceConfig `yaml:"reference"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls listener behaviour. HTTPAddress serves record
// traffic, Address hosts the gRPC health/reflection probe listener, and
// MetricsAddress exposes Prometheus scrapes.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StreamConfig carries the default per-session monitoring options. Callers
// can override most of these per request.
type StreamConfig struct {
	Fields           []string `yaml:"fields"`
	Method           string   `yaml:"method"`
	Threshold        float64  `yaml:"threshold"`
	WindowSize       int      `yaml:"windowSize"`
	IncludeAnalysis  bool     `yaml:"includeAnalysis"`
	MetricField      string   `yaml:"metricField"`
	BaselineField    string   `yaml:"baselineField"`
	ModelField       string   `yaml:"modelField"`
	ComparisonType   string   `yaml:"comparisonType"`
	GenerateAlerts   bool     `yaml:"generateAlerts"`
	TextField        string   `yaml:"textField"`
	DriftThreshold   float64  `yaml:"driftThreshold"`
	DriftWindow      int      `yaml:"driftWindow"`
	ResponseField    string   `yaml:"responseField"`
	PromptField      string   `yaml:"promptField"`
	TimeField        string   `yaml:"timeField"`
	TokenField       string   `yaml:"tokenField"`
	ConfidenceField  string   `yaml:"confidenceField"`
	IncludeTrends    bool     `yaml:"includeTrends"`
	SimilarityMethod string   `yaml:"similarityMethod"`
}

// ReferenceConfig locates the baseline/threshold reference data: local CSV
// files, an optional remote reference service, or both (remote wins when
// configured and reachable).
type ReferenceConfig struct {
	BaselinesFile  string        `yaml:"baselinesFile"`
	ThresholdsFile string        `yaml:"thresholdsFile"`
	DriftFile      string        `yaml:"driftFile"`
	BaseURL        string        `yaml:"baseURL"`
	BaselinesPath  string        `yaml:"baselinesPath"`
	ThresholdsPath string        `yaml:"thresholdsPath"`
	DriftPath      string        `yaml:"driftPath"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Redis-backed caching of reference lookups.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load initialises Config from a YAML file and optional environment
// overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DRIFTGUARD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Stream: StreamConfig{
			Method:           "zscore",
			Threshold:        2.0,
			WindowSize:       100,
			IncludeAnalysis:  true,
			ModelField:       "model_id",
			ComparisonType:   "percentage",
			GenerateAlerts:   true,
			DriftThreshold:   0.8,
			DriftWindow:      100,
			SimilarityMethod: "cosine",
		},
		Reference: ReferenceConfig{
			BaselinesFile:  "lookups/model_baselines.csv",
			ThresholdsFile: "lookups/alert_thresholds.csv",
			BaselinesPath:  "/api/v1/reference/baselines",
			ThresholdsPath: "/api/v1/reference/thresholds",
			DriftPath:      "/api/v1/reference/drift",
			Timeout:        5 * time.Second,
			CacheTTL:       5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache:   CacheConfig{Enabled: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRIFTGUARD_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DRIFTGUARD_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("DRIFTGUARD_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("DRIFTGUARD_STREAM_FIELDS"); v != "" {
		fields := strings.Split(v, ",")
		cfg.Stream.Fields = cfg.Stream.Fields[:0]
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Stream.Fields = append(cfg.Stream.Fields, f)
			}
		}
	}
	if v := os.Getenv("DRIFTGUARD_STREAM_METHOD"); v != "" {
		cfg.Stream.Method = v
	}
	if v := os.Getenv("DRIFTGUARD_STREAM_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Stream.Threshold = f
		}
	}
	if v := os.Getenv("DRIFTGUARD_STREAM_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.WindowSize = n
		}
	}
	if v := os.Getenv("DRIFTGUARD_REFERENCE_BASE_URL"); v != "" {
		cfg.Reference.BaseURL = v
	}
	if v := os.Getenv("DRIFTGUARD_REFERENCE_BASELINES_FILE"); v != "" {
		cfg.Reference.BaselinesFile = v
	}
	if v := os.Getenv("DRIFTGUARD_REFERENCE_THRESHOLDS_FILE"); v != "" {
		cfg.Reference.ThresholdsFile = v
	}
	if v := os.Getenv("DRIFTGUARD_REFERENCE_DRIFT_FILE"); v != "" {
		cfg.Reference.DriftFile = v
	}
	if v := os.Getenv("DRIFTGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRIFTGUARD_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DRIFTGUARD_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DRIFTGUARD_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DRIFTGUARD_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DRIFTGUARD_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
}
