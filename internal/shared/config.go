package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string        `mapstructure:"APP_ENV"`
	HTTPAddr    string        `mapstructure:"HTTP_ADDR"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`
	MetricsAddr string        `mapstructure:"METRICS_ADDR"`

	StoreDriver string `mapstructure:"STORE_DRIVER"` // mysql | mongo
	MySQLDSN    string `mapstructure:"MYSQL_DSN"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDB     string `mapstructure:"MONGO_DB"`

	// Redis is optional; empty address disables the cache and the shared lock.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	RedisPass string `mapstructure:"REDIS_PASSWORD"`
	RedisDB   int    `mapstructure:"REDIS_DB"`

	RemoteURL      string `mapstructure:"EXTERNAL_FEEDBACK_API_URL"`
	RemoteRPS      int    `mapstructure:"REMOTE_RPS"`
	AnalyzerOrigin string `mapstructure:"ANALYZER_ORIGIN"`
	AnalyzerKey    string `mapstructure:"AI_API_KEY"`
	AnalyzerRPS    int    `mapstructure:"ANALYZER_RPS"`

	ClassifyWorkers int           `mapstructure:"CLASSIFY_WORKERS"`
	DeferFailed     bool          `mapstructure:"INGEST_DEFER_FAILED"`
	IngestInterval  time.Duration `mapstructure:"INGEST_INTERVAL"`
	IngestLockTTL   time.Duration `mapstructure:"INGEST_LOCK_TTL"`
	DashboardTTL    time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"` // comma separated
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC_IMPORTS"`

	OtelExporter    string  `mapstructure:"OTEL_EXPORTER"` // none | stdout | otlp
	OtelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

var defaults = map[string]any{
	"APP_ENV":                   "prod",
	"HTTP_ADDR":                 ":8080",
	"HTTP_TIMEOUT":              "2m",
	"METRICS_ADDR":              ":9100",
	"STORE_DRIVER":              "mysql",
	"MYSQL_DSN":                 "root:root@tcp(localhost:3306)/feedback?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
	"MONGO_URI":                 "mongodb://localhost:27017",
	"MONGO_DB":                  "feedback",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"EXTERNAL_FEEDBACK_API_URL": "https://api.sandbox-feedback.example/v1/feedbacks",
	"REMOTE_RPS":                5,
	"ANALYZER_ORIGIN":           "http://localhost:3000",
	"AI_API_KEY":                "",
	"ANALYZER_RPS":              10,
	"CLASSIFY_WORKERS":          4,
	"INGEST_DEFER_FAILED":       false,
	"INGEST_INTERVAL":           "0s",
	"INGEST_LOCK_TTL":           "10m",
	"DASHBOARD_CACHE_TTL":       "30s",
	"KAFKA_BROKERS":             "",
	"KAFKA_TOPIC_IMPORTS":       "feedback.analysis.imported",
	"OTEL_EXPORTER":             "none",
	"OTEL_SAMPLE_RATIO":         1.0,
}

// Load reads config.yaml (., ./config) when present, then the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.OtelExporter = strings.ToLower(strings.TrimSpace(c.OtelExporter))

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	if c.AnalyzerKey == "" {
		log.Warn().Msg("AI_API_KEY is empty; process requests must carry an apiKey")
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "mysql", "mongo":
	default:
		return fmt.Errorf("STORE_DRIVER must be mysql or mongo, got %q", c.StoreDriver)
	}
	switch c.OtelExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_EXPORTER must be none, stdout or otlp, got %q", c.OtelExporter)
	}
	if strings.TrimSpace(c.RemoteURL) == "" {
		return errors.New("EXTERNAL_FEEDBACK_API_URL is required")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0,1], got %v", c.OtelSampleRatio)
	}
	return nil
}

// Brokers splits KAFKA_BROKERS; nil means events are disabled.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
