package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Redis    RedisConfig          `yaml:"redis"`
	Queue    QueueConfig          `yaml:"queue"`
	Database DatabaseConfig       `yaml:"database"`
	Storage  StorageConfig        `yaml:"storage"`
	Index    IndexConfig          `yaml:"index"`
	LLM      LLMConfig            `yaml:"llm"`
	Settings models.ModelSettings `yaml:"settings"`
	Pipeline PipelineConfig       `yaml:"pipeline"`
	Upload   UploadConfig         `yaml:"upload"`
	YouTube  YouTubeConfig        `yaml:"youtube"`
	Log      logger.Config        `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// QueueConfig bounds the processing task. SoftTimeout fires before
// HardTimeout so the FAILED status can still be written. LockTTL is the
// document lease length; a live run keeps renewing it.
type QueueConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxRetry    int           `yaml:"max_retry"`
	HardTimeout time.Duration `yaml:"hard_timeout"`
	SoftTimeout time.Duration `yaml:"soft_timeout"`
	Retention   time.Duration `yaml:"retention"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type IndexConfig struct {
	Backend     string `yaml:"backend"` // blob | pgvector
	Prefix      string `yaml:"prefix"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Dimensions  int    `yaml:"dimensions"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"` // openai | gemini | ollama
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type PipelineConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	MapConcurrency int     `yaml:"map_concurrency"`
	TopK           int     `yaml:"top_k"`
	QATemperature  float64 `yaml:"qa_temperature"`
}

type UploadConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
	ListLimit   int   `yaml:"list_limit"`
}

type YouTubeConfig struct {
	Languages        []string      `yaml:"languages"`
	PlaceholderText  string        `yaml:"placeholder_text"`
	PlaceholderTitle string        `yaml:"placeholder_title"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 5 * time.Second

	cfg.Redis.Addr = "localhost:6379"

	cfg.Queue.Concurrency = 4
	cfg.Queue.MaxRetry = 3
	cfg.Queue.HardTimeout = 5400 * time.Second
	cfg.Queue.SoftTimeout = 5340 * time.Second
	cfg.Queue.Retention = 24 * time.Hour
	cfg.Queue.LockTTL = time.Minute

	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "data/app.db"

	cfg.Storage.Type = "local"
	cfg.Storage.Local.Root = "data/media"

	cfg.Index.Backend = "blob"
	cfg.Index.Prefix = "indices"
	cfg.Index.Dimensions = 1536

	cfg.LLM.Provider = "openai"
	cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	cfg.LLM.Timeout = 120 * time.Second

	cfg.Settings = models.DefaultSettings()

	cfg.Pipeline.ChunkSize = 1000
	cfg.Pipeline.ChunkOverlap = 200
	cfg.Pipeline.MapConcurrency = 4
	cfg.Pipeline.TopK = 4

	cfg.Upload.MaxFileSize = 10 * 1024 * 1024
	cfg.Upload.ListLimit = 5

	cfg.YouTube.Languages = []string{"ru", "en"}
	cfg.YouTube.PlaceholderText = "YouTube Video"
	cfg.YouTube.PlaceholderTitle = "YouTube Video"
	cfg.YouTube.Timeout = 30 * time.Second

	cfg.Log = logger.DefaultConfig()

	return cfg
}

// Load reads the YAML file at path (if it exists) over the defaults, then
// applies environment overrides. A .env file is loaded first.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Printf("Warning: config file not found at %s, using defaults", path)
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Settings = cfg.Settings.WithDefaults()
	return cfg, nil
}

func loadDotEnv() {
	envPath := getEnv("ENV_PATH", ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load %s: %v", envPath, err)
	}
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Queue.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Queue.Concurrency)
	c.Queue.HardTimeout = getEnvDuration("TASK_TIME_LIMIT", c.Queue.HardTimeout)
	c.Queue.SoftTimeout = getEnvDuration("TASK_SOFT_TIME_LIMIT", c.Queue.SoftTimeout)

	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)

	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.Local.Root = getEnv("STORAGE_ROOT", c.Storage.Local.Root)
	c.Storage.S3.applyEnv()
	c.Storage.Minio.applyEnv()

	c.Index.Backend = getEnv("INDEX_BACKEND", c.Index.Backend)
	c.Index.PostgresDSN = getEnv("PGVECTOR_DSN", c.Index.PostgresDSN)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.LLM.EmbeddingModel)
	switch c.LLM.Provider {
	case "openai":
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	case "gemini":
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	}

	c.Settings.Model = getEnv("LLM_MODEL", c.Settings.Model)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if v := getEnv("LOG_OUTPUT_PATHS", ""); v != "" {
		c.Log.OutputPaths = strings.Split(v, ",")
	}
}

// Validate reports missing credentials and inconsistent limits as
// configuration errors.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			return apperrors.NewConfigurationError("config.llm", fmt.Sprintf("API key for %s is not set", c.LLM.Provider))
		}
	case "ollama":
	default:
		return apperrors.NewConfigurationError("config.llm", fmt.Sprintf("unsupported provider %q", c.LLM.Provider))
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	switch c.Index.Backend {
	case "blob":
	case "pgvector":
		if c.Index.PostgresDSN == "" {
			return apperrors.NewConfigurationError("config.index", "postgres_dsn is required for the pgvector backend")
		}
	default:
		return apperrors.NewConfigurationError("config.index", fmt.Sprintf("unsupported backend %q", c.Index.Backend))
	}

	if c.Queue.SoftTimeout <= 0 || c.Queue.SoftTimeout >= c.Queue.HardTimeout {
		return apperrors.NewConfigurationError("config.queue", "soft_timeout must be positive and below hard_timeout")
	}
	if c.Queue.LockTTL <= 0 {
		return apperrors.NewConfigurationError("config.queue", "lock_ttl must be positive")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return apperrors.NewConfigurationError("config.pipeline", "chunk_overlap must be smaller than chunk_size")
	}
	if err := c.Settings.Validate(); err != nil {
		return apperrors.NewConfigurationError("config.settings", err.Error())
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain seconds, as celery-style limits are usually given
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
