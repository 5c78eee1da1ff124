package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logger     LoggerConfig
	Store      StoreConfig
	Inference  InferenceConfig
	Artifacts  ArtifactConfig
	Sweeper    SweeperConfig
	Redis      RedisConfig
	Kubernetes KubernetesConfig
	KServe     KServeConfig
	Otel       OtelConfig
	RateLimit  RateLimitConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN renders the connection string in URL form, accepted by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type LoggerConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the record store backend: "postgres" or "memory".
type StoreConfig struct {
	Backend string
}

type InferenceConfig struct {
	Timeout time.Duration
	// WarmOnStart loads the active models before the server accepts traffic.
	WarmOnStart bool
}

type ArtifactConfig struct {
	TTL     time.Duration
	Backend string // "filesystem" or "azureblob"
	Dir     string

	AzureAccountURL       string
	AzureConnectionString string
	AzureContainer        string
}

type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	DefaultNS      string
}

type KServeConfig struct {
	// BaseURL is used as-is when set; otherwise endpoints are resolved from the cluster.
	BaseURL     string
	StageSuffix string
}

type OtelConfig struct {
	Exporter    string // "none", "stdout" or "otlp"
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "scan_predictions")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("STORE_BACKEND", "postgres")

	v.SetDefault("INFERENCE_TIMEOUT", "5s")
	v.SetDefault("INFERENCE_WARM_ON_START", false)

	v.SetDefault("ARTIFACT_TTL", "24h")
	v.SetDefault("ARTIFACT_BACKEND", "filesystem")
	v.SetDefault("ARTIFACT_DIR", "./data")
	v.SetDefault("ARTIFACT_AZURE_CONTAINER", "explainability")

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_INTERVAL", "1h")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("KUBERNETES_ENABLED", false)
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_DEFAULT_NS", "model-serving")

	v.SetDefault("KSERVE_BASE_URL", "")
	v.SetDefault("KSERVE_STAGE_SUFFIX", "-stage")

	v.SetDefault("OTEL_EXPORTER", "none")
	v.SetDefault("OTEL_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "scan-prediction-service")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ShutdownTimeout: duration(v, "SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: duration(v, "DB_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Store: StoreConfig{
			Backend: v.GetString("STORE_BACKEND"),
		},
		Inference: InferenceConfig{
			Timeout:     duration(v, "INFERENCE_TIMEOUT", 5*time.Second),
			WarmOnStart: v.GetBool("INFERENCE_WARM_ON_START"),
		},
		Artifacts: ArtifactConfig{
			TTL:                   duration(v, "ARTIFACT_TTL", 24*time.Hour),
			Backend:               v.GetString("ARTIFACT_BACKEND"),
			Dir:                   v.GetString("ARTIFACT_DIR"),
			AzureAccountURL:       v.GetString("ARTIFACT_AZURE_ACCOUNT_URL"),
			AzureConnectionString: v.GetString("ARTIFACT_AZURE_CONNECTION_STRING"),
			AzureContainer:        v.GetString("ARTIFACT_AZURE_CONTAINER"),
		},
		Sweeper: SweeperConfig{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Interval: duration(v, "SWEEP_INTERVAL", time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("KUBERNETES_ENABLED"),
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			DefaultNS:      v.GetString("KUBERNETES_DEFAULT_NS"),
		},
		KServe: KServeConfig{
			BaseURL:     v.GetString("KSERVE_BASE_URL"),
			StageSuffix: v.GetString("KSERVE_STAGE_SUFFIX"),
		},
		Otel: OtelConfig{
			Exporter:    v.GetString("OTEL_EXPORTER"),
			Endpoint:    v.GetString("OTEL_ENDPOINT"),
			Insecure:    v.GetBool("OTEL_INSECURE"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}

	if cfg.Inference.Timeout <= 0 {
		return nil, fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}
	switch cfg.Store.Backend {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}
