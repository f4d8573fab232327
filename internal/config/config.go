// Package config loads service configuration from environment variables, with
// an optional YAML file overriding the defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
		// Enabled=false runs on the in-memory store instead of Postgres.
		Enabled bool `yaml:"enabled"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Enabled  bool   `yaml:"enabled"`
		// CycleTTLSeconds bounds how long a cached cycle result stays fresh.
		CycleTTLSeconds int `yaml:"cycle_ttl_seconds"`
	} `yaml:"redis"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"client_id"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Topic    string `yaml:"topic"`
		Enabled  bool   `yaml:"enabled"`
	} `yaml:"mqtt"`

	OpenWeather struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"openweather"`

	Agent struct {
		// AutonomousMode is the default execution mode for new cycles;
		// each run request may override it.
		AutonomousMode bool `yaml:"autonomous_mode"`
		// HistoryDays is how many daily records feed one cycle.
		HistoryDays int `yaml:"history_days"`
		// AuditLogCap bounds the in-memory audit trail per facility
		// (0 keeps everything).
		AuditLogCap int `yaml:"audit_log_cap"`
		// DefaultFacilityID serves requests that name no facility.
		DefaultFacilityID string `yaml:"default_facility_id"`
	} `yaml:"agent"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load builds the configuration from environment variables. When CONFIG_FILE
// names a YAML file, its values are applied first and the environment
// overrides them.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Server.Port = getEnvInt("SERVER_PORT", defaultInt(cfg.Server.Port, 8090))

	cfg.Database.Host = getEnv("DB_HOST", defaultStr(cfg.Database.Host, "localhost"))
	cfg.Database.Port = getEnvInt("DB_PORT", defaultInt(cfg.Database.Port, 5432))
	cfg.Database.User = getEnv("DB_USER", defaultStr(cfg.Database.User, "postgres"))
	cfg.Database.Password = getEnv("DB_PASSWORD", defaultStr(cfg.Database.Password, "postgres"))
	cfg.Database.Database = getEnv("DB_NAME", defaultStr(cfg.Database.Database, "hospitai"))
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", defaultStr(cfg.Database.SSLMode, "disable"))
	cfg.Database.Enabled = getEnvBool("DB_ENABLED", cfg.Database.Enabled)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", defaultStr(cfg.Redis.Addr, "localhost:6379"))
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.CycleTTLSeconds = getEnvInt("REDIS_CYCLE_TTL", defaultInt(cfg.Redis.CycleTTLSeconds, 300))

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", defaultStr(cfg.MQTT.ClientID, "hospitai-agent"))
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", defaultStr(cfg.MQTT.Topic, "hospitai/actions/executed"))
	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", cfg.MQTT.Enabled)

	cfg.OpenWeather.BaseURL = getEnv("OPENWEATHER_BASE_URL",
		defaultStr(cfg.OpenWeather.BaseURL, "https://api.openweathermap.org"))
	cfg.OpenWeather.APIKey = getEnv("OPENWEATHER_API_KEY", cfg.OpenWeather.APIKey)

	cfg.Agent.AutonomousMode = getEnvBool("AGENT_AUTONOMOUS_MODE", cfg.Agent.AutonomousMode)
	cfg.Agent.HistoryDays = getEnvInt("AGENT_HISTORY_DAYS", defaultInt(cfg.Agent.HistoryDays, 30))
	cfg.Agent.AuditLogCap = getEnvInt("AGENT_AUDIT_LOG_CAP", defaultInt(cfg.Agent.AuditLogCap, 500))
	cfg.Agent.DefaultFacilityID = getEnv("AGENT_FACILITY_ID",
		defaultStr(cfg.Agent.DefaultFacilityID, "default"))

	cfg.Log.Level = getEnv("LOG_LEVEL", defaultStr(cfg.Log.Level, "info"))
	cfg.Log.Format = getEnv("LOG_FORMAT", defaultStr(cfg.Log.Format, "json"))

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func defaultStr(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func defaultInt(current, fallback int) int {
	if current != 0 {
		return current
	}
	return fallback
}
