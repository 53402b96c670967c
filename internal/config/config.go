package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Services  ServicesConfig
	Dirs      DirsConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Archive   ArchiveConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServicesConfig holds the downstream service endpoints and timeouts.
// ConnectTimeout covers connection establishment only; ReadTimeout covers
// the whole exchange and is long because model inference is slow.
type ServicesConfig struct {
	ASRURL         string
	TTSURL         string
	Wav2LipURL     string
	ConnectTimeout int // seconds
	ReadTimeout    int // seconds
	HealthTimeout  int // seconds
}

type DirsConfig struct {
	Upload string
	Output string
}

// PipelineConfig bounds how many pipeline runs may be in flight at once.
type PipelineConfig struct {
	Concurrency int
}

type RateLimitConfig struct {
	UploadsPerHour int
}

// ArchiveConfig configures optional mirroring of completed outputs to
// R2-compatible object storage. Leave empty to keep outputs on local disk
// only.
type ArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ARCHIVE_ACCOUNT_ID")
	readSecret("ARCHIVE_ACCESS_KEY_ID")
	readSecret("ARCHIVE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("services.asr_url", "ASR_URL")
	_ = viper.BindEnv("services.tts_url", "TTS_URL")
	_ = viper.BindEnv("services.wav2lip_url", "W2L_URL")
	_ = viper.BindEnv("services.connect_timeout", "SERVICE_CONNECT_TIMEOUT")
	_ = viper.BindEnv("services.read_timeout", "SERVICE_READ_TIMEOUT")
	_ = viper.BindEnv("services.health_timeout", "SERVICE_HEALTH_TIMEOUT")
	_ = viper.BindEnv("dirs.upload", "UPLOAD_DIR")
	_ = viper.BindEnv("dirs.output", "OUTPUT_DIR")
	_ = viper.BindEnv("pipeline.concurrency", "PIPELINE_CONCURRENCY")
	_ = viper.BindEnv("ratelimit.uploads_per_hour", "RATELIMIT_UPLOADS_PER_HOUR")
	_ = viper.BindEnv("archive.account_id", "ARCHIVE_ACCOUNT_ID")
	_ = viper.BindEnv("archive.access_key_id", "ARCHIVE_ACCESS_KEY_ID")
	_ = viper.BindEnv("archive.secret_access_key", "ARCHIVE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("archive.bucket_name", "ARCHIVE_BUCKET_NAME")
	_ = viper.BindEnv("archive.public_url", "ARCHIVE_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("services.asr_url", "http://localhost:8001")
	viper.SetDefault("services.tts_url", "http://localhost:8002")
	viper.SetDefault("services.wav2lip_url", "http://localhost:8003")
	viper.SetDefault("services.connect_timeout", 10)
	viper.SetDefault("services.read_timeout", 600)
	viper.SetDefault("services.health_timeout", 5)
	viper.SetDefault("dirs.upload", "./uploads")
	viper.SetDefault("dirs.output", "./outputs")
	viper.SetDefault("pipeline.concurrency", 2)
	viper.SetDefault("ratelimit.uploads_per_hour", 50)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Services: ServicesConfig{
			ASRURL:         viper.GetString("services.asr_url"),
			TTSURL:         viper.GetString("services.tts_url"),
			Wav2LipURL:     viper.GetString("services.wav2lip_url"),
			ConnectTimeout: viper.GetInt("services.connect_timeout"),
			ReadTimeout:    viper.GetInt("services.read_timeout"),
			HealthTimeout:  viper.GetInt("services.health_timeout"),
		},
		Dirs: DirsConfig{
			Upload: viper.GetString("dirs.upload"),
			Output: viper.GetString("dirs.output"),
		},
		Pipeline: PipelineConfig{
			Concurrency: viper.GetInt("pipeline.concurrency"),
		},
		RateLimit: RateLimitConfig{
			UploadsPerHour: viper.GetInt("ratelimit.uploads_per_hour"),
		},
		Archive: ArchiveConfig{
			AccountID:       viper.GetString("archive.account_id"),
			AccessKeyID:     viper.GetString("archive.access_key_id"),
			SecretAccessKey: viper.GetString("archive.secret_access_key"),
			BucketName:      viper.GetString("archive.bucket_name"),
			PublicURL:       viper.GetString("archive.public_url"),
		},
	}

	return cfg, nil
}
