package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel            string `yaml:"logLevel"`
	RedisAddr           string `yaml:"redisAddr"`
	RedisPassword       string `yaml:"redisPassword"`
	DatabaseURL         string `yaml:"databaseURL"`
	MinioEndpoint       string `yaml:"minioEndpoint"`
	MinioAccessKey      string `yaml:"minioAccessKey"`
	MinioSecretKey      string `yaml:"minioSecretKey"`
	MinioBucket         string `yaml:"minioBucket"`
	MinioUseSSL         bool   `yaml:"minioUseSSL"`
	AMQPURL             string `yaml:"amqpUrl"`
	AMQPExchange        string `yaml:"amqpExchange"`
	Provider            string `yaml:"provider"`
	ProviderAPIKey      string `yaml:"providerApiKey"`
	ProviderBaseURL     string `yaml:"providerBaseUrl"`
	ProviderModel       string `yaml:"providerModel"`
	JobStream           string `yaml:"jobStream"`
	WorkerCount         int    `yaml:"workerCount"`
	BatchSize           int    `yaml:"batchSize"`
	BatchTimeoutSeconds int    `yaml:"batchTimeoutSeconds"`
	SubjectServiceURL   string `yaml:"subjectServiceURL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if useSSL, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = useSSL
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("AMQP_EXCHANGE"); v != "" {
		cfg.AMQPExchange = v
	}
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GENERATION_PROVIDER_API_KEY"); v != "" {
		cfg.ProviderAPIKey = v
	}
	if v := os.Getenv("GENERATION_PROVIDER_BASE_URL"); v != "" {
		cfg.ProviderBaseURL = v
	}
	if v := os.Getenv("GENERATION_PROVIDER_MODEL"); v != "" {
		cfg.ProviderModel = v
	}
	if v := os.Getenv("GENERATION_JOB_STREAM"); v != "" {
		cfg.JobStream = v
	}
	if v := os.Getenv("GENERATION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerCount = n
		}
	}
	if v := os.Getenv("GENERATION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("GENERATION_BATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchTimeoutSeconds = n
		}
	}
	if v := os.Getenv("SUBJECT_SERVICE_URL"); v != "" {
		cfg.SubjectServiceURL = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai", "openai-compat":
	default:
		return fmt.Errorf("config: provider %q must be openai or openai-compat", cfg.Provider)
	}
	if cfg.ProviderAPIKey == "" {
		return errors.New("config: providerApiKey is required (set in config.yaml or GENERATION_PROVIDER_API_KEY)")
	}
	if strings.EqualFold(cfg.Provider, "openai-compat") && cfg.ProviderBaseURL == "" {
		return errors.New("config: providerBaseUrl is required when provider=openai-compat")
	}
	if cfg.ProviderModel == "" {
		return errors.New("config: providerModel is required")
	}
	if cfg.SubjectServiceURL == "" {
		return errors.New("config: subjectServiceURL is required (set in config.yaml or SUBJECT_SERVICE_URL)")
	}
	if cfg.WorkerCount < 0 {
		return errors.New("config: workerCount must be >= 0")
	}
	if cfg.BatchSize < 0 {
		return errors.New("config: batchSize must be >= 0")
	}
	if cfg.BatchTimeoutSeconds < 0 {
		return errors.New("config: batchTimeoutSeconds must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minio requires minioAccessKey, minioSecretKey and minioBucket")
	}
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		return errors.New("config: amqpExchange is required when amqpUrl is set")
	}
	return nil
}
