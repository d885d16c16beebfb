package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the role service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Security     SecurityConfig
	RoleSwitch   RoleSwitchConfig
	Notification NotificationConfig
	Retention    RetentionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Mode string // debug, release
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the verification-flag cache configuration
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	FlagsCacheTTL time.Duration
	Enabled       bool
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret string
}

// RoleSwitchConfig holds the rate limiting and prerequisite settings
type RoleSwitchConfig struct {
	CooldownMinutes     int
	MaxDailySwitches    int
	CompletionThreshold int
}

// NotificationConfig holds notification-service delivery settings
type NotificationConfig struct {
	ServiceURL string
	APIKey     string
	NATSURL    string
}

// RetentionConfig holds the notification cleanup job settings
type RetentionConfig struct {
	CleanupEnabled  bool
	CleanupSchedule string
	RetentionDays   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8092"),
			Mode: getEnv("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "marketplace"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			FlagsCacheTTL: time.Duration(getEnvAsInt("FLAGS_CACHE_TTL_SECONDS", 300)) * time.Second,
			Enabled:       getEnvAsBool("REDIS_ENABLED", true),
		},
		Security: SecurityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		RoleSwitch: RoleSwitchConfig{
			CooldownMinutes:     getEnvAsInt("COOLDOWN_MINUTES", 15),
			MaxDailySwitches:    getEnvAsInt("MAX_DAILY_SWITCHES", 3),
			CompletionThreshold: getEnvAsInt("COMPLETION_THRESHOLD", 80),
		},
		Notification: NotificationConfig{
			ServiceURL: getEnv("NOTIFICATION_SERVICE_URL", "http://notification-service:8090"),
			APIKey:     getEnv("NOTIFICATION_API_KEY", ""),
			NATSURL:    getEnv("NATS_URL", ""),
		},
		Retention: RetentionConfig{
			CleanupEnabled:  getEnvAsBool("NOTIFICATION_CLEANUP_ENABLED", true),
			CleanupSchedule: getEnv("NOTIFICATION_CLEANUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("NOTIFICATION_RETENTION_DAYS", 90),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.RoleSwitch.CooldownMinutes <= 0 {
		return fmt.Errorf("COOLDOWN_MINUTES must be positive")
	}

	if c.RoleSwitch.MaxDailySwitches <= 0 {
		return fmt.Errorf("MAX_DAILY_SWITCHES must be positive")
	}

	if c.RoleSwitch.CompletionThreshold < 0 || c.RoleSwitch.CompletionThreshold > 100 {
		return fmt.Errorf("COMPLETION_THRESHOLD must be between 0 and 100")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetCooldownDuration returns the cooldown duration between switches
func (c *Config) GetCooldownDuration() time.Duration {
	return time.Duration(c.RoleSwitch.CooldownMinutes) * time.Minute
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
