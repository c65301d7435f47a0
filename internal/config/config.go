package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                 int     `validate:"min=1,max=65535"`
	CascadePath          string  `validate:"required"`
	ModelPath            string  `validate:"required"`
	ModelConfigPath      string  // optional, passed to gocv.ReadNet as the config file
	MetadataPath         string  // defaults to ModelPath + ".json"
	InputSize            int     `validate:"min=1"`   // classifier input edge when no metadata is present
	InferenceWorkers     int     `validate:"min=1"`   // number of independent model sessions
	NetBackend           string  `validate:"oneof=default halide openvino opencv vulkan cuda"`
	NetTarget            string  `validate:"oneof=cpu fp32 fp16 vpu vulkan fpga cuda cudafp16"`
	MaxUploadMB          int     `validate:"min=1"`
	RateLimitRPS         float64 `validate:"gte=0"` // 0 disables rate limiting
	RateLimitBurst       int     `validate:"min=1"`
	TrustForwardedFor    bool    // key the rate limiter on X-Forwarded-For; enable only behind a proxy
	APIToken             string  // empty disables bearer auth
	JournalPath          string  // empty disables the inference journal
	JournalBufferLimit   int     `validate:"min=1"`
	JournalFlushInterval int     `validate:"min=1"` // seconds
	LogDirectory         string
	LogLevel             string `validate:"oneof=debug info warn error"`
	AppEnv               string
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	modelPath := getEnv("EMOTION_MODEL_PATH", filepath.Join(".", "models", "fer2013_mini_XCEPTION.onnx"))

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		CascadePath:          getEnv("CASCADE_PATH", filepath.Join(".", "models", "haarcascade_frontalface_default.xml")),
		ModelPath:            modelPath,
		ModelConfigPath:      getEnv("EMOTION_CONFIG_PATH", ""),
		MetadataPath:         getEnv("EMOTION_METADATA_PATH", modelPath+".json"),
		InputSize:            getEnvAsInt("EMOTION_INPUT_SIZE", 48),
		InferenceWorkers:     getEnvAsInt("INFERENCE_WORKERS", 1),
		NetBackend:           getEnv("NET_BACKEND", "default"),
		NetTarget:            getEnv("NET_TARGET", "cpu"),
		MaxUploadMB:          getEnvAsInt("MAX_UPLOAD_MB", 20),
		RateLimitRPS:         getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 40),
		TrustForwardedFor:    getEnvAsBool("TRUST_FORWARDED_FOR", false),
		APIToken:             getEnv("API_TOKEN", ""),
		JournalPath:          getEnv("JOURNAL_PATH", ""),
		JournalBufferLimit:   getEnvAsInt("JOURNAL_BUFFER_LIMIT", 50),
		JournalFlushInterval: getEnvAsInt("JOURNAL_FLUSH_INTERVAL", 10),
		LogDirectory:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		AppEnv:               getEnv("APP_ENV", "production"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
