package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is only fit for local development.
const DefaultJWTSecret = "default-secret-key-change-me"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set to a non-default value in release mode")

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GinMode  string `yaml:"gin_mode"`

	DBDriver   string `yaml:"db_driver"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPath     string `yaml:"db_path"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	OTPStore      string `yaml:"otp_store"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	HeadSignupPIN  string `yaml:"head_signup_pin"`
	AdminSignupPIN string `yaml:"admin_signup_pin"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	MailFrom     string `yaml:"mail_from"`

	OpenAIAPIKey string `yaml:"openai_api_key"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then any environment variables that are set.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// Validate rejects settings that are unsafe for the current mode.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return ErrInsecureJWTSecret
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func defaults() *Config {
	return &Config{
		HTTPAddr:   ":8080",
		GinMode:    "debug",
		DBDriver:   "mysql",
		DBHost:     "localhost",
		DBPort:     "3306",
		DBUser:     "hive",
		DBPassword: "hivepassword",
		DBName:     "hive",
		DBPath:     "hive.db",
		RedisHost:  "localhost",
		RedisPort:  "6379",
		OTPStore:   "memory",
		JWTSecret:  DefaultJWTSecret,
		TokenTTL:   7 * 24 * time.Hour,
		SMTPPort:   "587",
		MailFrom:   "hive@localhost",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &cfg.HTTPAddr,
		"GIN_MODE":         &cfg.GinMode,
		"DB_DRIVER":        &cfg.DBDriver,
		"DB_HOST":          &cfg.DBHost,
		"DB_PORT":          &cfg.DBPort,
		"DB_USER":          &cfg.DBUser,
		"DB_PASSWORD":      &cfg.DBPassword,
		"DB_NAME":          &cfg.DBName,
		"DB_PATH":          &cfg.DBPath,
		"REDIS_HOST":       &cfg.RedisHost,
		"REDIS_PORT":       &cfg.RedisPort,
		"REDIS_PASSWORD":   &cfg.RedisPassword,
		"OTP_STORE":        &cfg.OTPStore,
		"JWT_SECRET":       &cfg.JWTSecret,
		"HEAD_SIGNUP_PIN":  &cfg.HeadSignupPIN,
		"ADMIN_SIGNUP_PIN": &cfg.AdminSignupPIN,
		"SMTP_HOST":        &cfg.SMTPHost,
		"SMTP_PORT":        &cfg.SMTPPort,
		"SMTP_USER":        &cfg.SMTPUser,
		"SMTP_PASSWORD":    &cfg.SMTPPassword,
		"MAIL_FROM":        &cfg.MailFrom,
		"OPENAI_API_KEY":   &cfg.OpenAIAPIKey,
		"LOG_LEVEL":        &cfg.LogLevel,
		"LOG_FORMAT":       &cfg.LogFormat,
	}
	for key, dst := range strs {
		*dst = getEnv(key, *dst)
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL %q: %w", v, err)
		}
		cfg.TokenTTL = d
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
