package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Uploads  UploadConfig
	Mail     MailConfig
	Logger   LoggerConfig
	Sweeper  SweeperConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	// Requests allowed per window on auth and contact endpoints
	RateLimit  int
	RateWindow time.Duration
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes, 0 disables expiry
}

type AuthConfig struct {
	SingleUser bool
}

type UploadConfig struct {
	Dir          string
	MaxMemory    int64 // bytes kept in memory while parsing multipart forms
	MaxBodyBytes int64
	CheckType    bool
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LoggerConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type SweeperConfig struct {
	Schedule string
	Grace    time.Duration
}

func Load() *Config {
	// Preload .env so values are visible to os.Getenv as well as viper
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "4000")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_ENABLED", true)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("JWT_ACCESS_EXPIRY", 1440)
	viper.SetDefault("AUTH_SINGLE_USER", true)
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("UPLOAD_MAX_MEMORY", 32<<20)
	viper.SetDefault("UPLOAD_MAX_BODY", 64<<20)
	viper.SetDefault("UPLOAD_CHECK_TYPE", true)
	viper.SetDefault("SMTP_HOST", "smtp.gmail.com")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("LOG_FILE", "")
	viper.SetDefault("LOG_MAX_SIZE_MB", 64)
	viper.SetDefault("LOG_MAX_BACKUPS", 7)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 7)
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1h")
	viper.SetDefault("SWEEP_GRACE", "24h")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	mailUser := viper.GetString("SMTP_USER")

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:    viper.GetBool("REDIS_ENABLED"),
			Host:       viper.GetString("REDIS_HOST"),
			Port:       viper.GetString("REDIS_PORT"),
			Password:   viper.GetString("REDIS_PASSWORD"),
			DB:         viper.GetInt("REDIS_DB"),
			RateLimit:  viper.GetInt("RATE_LIMIT_REQUESTS"),
			RateWindow: viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		Auth: AuthConfig{
			SingleUser: viper.GetBool("AUTH_SINGLE_USER"),
		},
		Uploads: UploadConfig{
			Dir:          viper.GetString("UPLOAD_DIR"),
			MaxMemory:    viper.GetInt64("UPLOAD_MAX_MEMORY"),
			MaxBodyBytes: viper.GetInt64("UPLOAD_MAX_BODY"),
			CheckType:    viper.GetBool("UPLOAD_CHECK_TYPE"),
		},
		Mail: MailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: mailUser,
			Password: viper.GetString("SMTP_PASS"),
			From:     firstNonEmpty(viper.GetString("MAIL_FROM"), mailUser),
			To:       firstNonEmpty(viper.GetString("MAIL_TO"), mailUser),
		},
		Logger: LoggerConfig{
			File:       viper.GetString("LOG_FILE"),
			MaxSizeMB:  viper.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: viper.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: viper.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Sweeper: SweeperConfig{
			Schedule: viper.GetString("SWEEP_SCHEDULE"),
			Grace:    viper.GetDuration("SWEEP_GRACE"),
		},
	}
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
