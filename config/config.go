package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const devJWTSecret = "cloudnest-development-secret"

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// mongo, postgres or memory
	DBDriver          string `env:"DB_DRIVER" envDefault:"mongo"`
	MongoURI          string `env:"MONGO_URI"`
	DatabaseName      string `env:"DATABASE_NAME" envDefault:"cloudnest"`
	MongoTransactions string `env:"MONGO_TRANSACTIONS" envDefault:"auto"`
	PostgresURL       string `env:"POSTGRES_URL"`
	PostgresMaxConns  int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	AutoMigrate       bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// b2, s3 or memory
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"b2"`

	B2ApplicationKeyID string `env:"B2_APPLICATION_KEY_ID"`
	B2ApplicationKey   string `env:"B2_APPLICATION_KEY"`
	B2BucketName       string `env:"B2_BUCKET_NAME"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	AdminEmails   []string      `env:"ADMIN_EMAILS" envSeparator:","`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`

	MaxFileSize         int64         `env:"MAX_FILE_SIZE" envDefault:"104857600"`
	DefaultStorageLimit int64         `env:"DEFAULT_STORAGE_LIMIT" envDefault:"2147483648"`
	MediaTimeout        time.Duration `env:"MEDIA_TIMEOUT" envDefault:"30s"`

	RedisURL          string        `env:"REDIS_URL"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	QuotaReconcileSchedule string `env:"QUOTA_RECONCILE_SCHEDULE" envDefault:"@every 24h"`
	ShareSweepSchedule     string `env:"SHARE_SWEEP_SCHEDULE" envDefault:"@every 1h"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MongoTransactionMode returns nil for "auto", leaving detection to the
// driver, or the forced setting.
func (c *Config) MongoTransactionMode() *bool {
	switch strings.ToLower(c.MongoTransactions) {
	case "true", "on", "1":
		enabled := true
		return &enabled
	case "false", "off", "0":
		disabled := false
		return &disabled
	default:
		return nil
	}
}

// Load reads the first .env file it finds, then parses the environment.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	applyAliases(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	logConfig(cfg)
	return cfg, nil
}

func loadDotEnv() {
	pwd, _ := os.Getwd()
	envPaths := []string{
		".env",
		"../.env",
		filepath.Join(filepath.Dir(pwd), ".env"),
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		absPath, _ := filepath.Abs(envPath)
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", absPath).Msg("Failed to load .env")
			continue
		}
		log.Debug().Str("path", absPath).Msg("Loaded environment variables from .env")
		return
	}
	log.Debug().Msg("No .env file found, using system environment variables")
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// applyAliases fills settings that are commonly exported under other names.
func applyAliases(cfg *Config) {
	if cfg.B2ApplicationKeyID == "" {
		cfg.B2ApplicationKeyID = firstEnv("B2_KEY_ID", "BACKBLAZE_KEY_ID")
	}
	if cfg.B2ApplicationKey == "" {
		cfg.B2ApplicationKey = firstEnv("B2_APP_KEY", "BACKBLAZE_APP_KEY")
	}
	if cfg.B2BucketName == "" {
		cfg.B2BucketName = firstEnv("B2_BUCKET", "BACKBLAZE_BUCKET")
	}
	if cfg.PostgresURL == "" {
		cfg.PostgresURL = os.Getenv("DATABASE_URL")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = firstEnv("MONGODB_URI")
	}
	if cfg.MongoURI == "" && cfg.DBDriver == "mongo" {
		cfg.MongoURI = "mongodb://localhost:27017"
	}

	emails := cfg.AdminEmails[:0]
	for _, e := range cfg.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	cfg.AdminEmails = emails
}

func validateConfig(cfg *Config) error {
	var missingVars []string
	var problems []string

	if cfg.JWTSecret == "" {
		if cfg.IsDevelopment() {
			log.Warn().Msg("JWT_SECRET not set, using the development secret")
			cfg.JWTSecret = devJWTSecret
		} else {
			missingVars = append(missingVars, "JWT_SECRET")
		}
	}

	switch cfg.DBDriver {
	case "mongo":
		if cfg.MongoURI == "" {
			missingVars = append(missingVars, "MONGO_URI")
		}
	case "postgres":
		if cfg.PostgresURL == "" {
			missingVars = append(missingVars, "POSTGRES_URL")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER must be mongo, postgres or memory, got %q", cfg.DBDriver))
	}

	switch cfg.StorageDriver {
	case "b2":
		required := map[string]string{
			"B2_APPLICATION_KEY_ID": cfg.B2ApplicationKeyID,
			"B2_APPLICATION_KEY":    cfg.B2ApplicationKey,
			"B2_BUCKET_NAME":        cfg.B2BucketName,
		}
		for key, value := range required {
			if value == "" {
				missingVars = append(missingVars, key)
			}
		}
	case "s3":
		if cfg.S3Bucket == "" {
			missingVars = append(missingVars, "S3_BUCKET")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_DRIVER must be b2, s3 or memory, got %q", cfg.StorageDriver))
	}

	switch strings.ToLower(cfg.MongoTransactions) {
	case "auto", "true", "on", "1", "false", "off", "0":
	default:
		problems = append(problems, fmt.Sprintf("MONGO_TRANSACTIONS must be auto, true or false, got %q", cfg.MongoTransactions))
	}
	if cfg.MaxFileSize <= 0 {
		problems = append(problems, "MAX_FILE_SIZE must be positive")
	}
	if cfg.DefaultStorageLimit <= 0 {
		problems = append(problems, "DEFAULT_STORAGE_LIMIT must be positive")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		problems = append(problems, "RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}

	if len(missingVars) > 0 {
		slices.Sort(missingVars)
		problems = append(problems, fmt.Sprintf("missing required environment variables: %v", missingVars))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func logConfig(cfg *Config) {
	log.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Env).
		Str("db_driver", cfg.DBDriver).
		Str("database", cfg.DatabaseName).
		Str("mongo_uri", maskConnectionString(cfg.MongoURI)).
		Str("postgres_url", maskConnectionString(cfg.PostgresURL)).
		Str("storage_driver", cfg.StorageDriver).
		Str("b2_key_id", maskSecret(cfg.B2ApplicationKeyID)).
		Str("b2_bucket", cfg.B2BucketName).
		Str("s3_bucket", cfg.S3Bucket).
		Str("jwt_secret", maskSecret(cfg.JWTSecret)).
		Dur("jwt_expiration", cfg.JWTExpiration).
		Int64("max_file_size", cfg.MaxFileSize).
		Int64("default_storage_limit", cfg.DefaultStorageLimit).
		Bool("redis", cfg.RedisURL != "").
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded")
}

func maskSecret(secret string) string {
	if secret == "" {
		return "[NOT SET]"
	}
	if len(secret) <= 8 {
		return "[HIDDEN]"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func maskConnectionString(uri string) string {
	if uri == "" {
		return "[NOT SET]"
	}
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		if len(parts) >= 2 {
			return "[CREDENTIALS_HIDDEN]@" + parts[len(parts)-1]
		}
	}
	return uri
}

func CreateContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
