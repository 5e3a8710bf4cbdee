package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	CORS          CORSConfig
	Geo           GeoConfig
	PortBuffer    PortBufferConfig
	Spire         ProviderConfig
	MarineTraffic ProviderConfig
	Ingestion     IngestionConfig
	Scheduler     SchedulerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// GeoConfig holds the spatial reference every stored geometry is written in.
type GeoConfig struct {
	SRID int
}

// PortBufferConfig controls the geodesic buffer derived around each port.
type PortBufferConfig struct {
	RadiusMeters float64
	Resolution   int
	Workers      int
	Interval     time.Duration
}

// ProviderConfig describes one upstream AIS provider.
type ProviderConfig struct {
	Enabled  bool
	URL      string
	Token    string
	Interval time.Duration
}

// IngestionConfig holds settings shared by the position ingestion jobs.
type IngestionConfig struct {
	SeedFile        string
	ProviderTimeout time.Duration
}

// SchedulerConfig holds the periodic job runner settings.
type SchedulerConfig struct {
	MaxBackoff time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "seawatch")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SRID", 4326)
	v.SetDefault("PORT_BUFFER_RADIUS_METERS", 3000)
	v.SetDefault("PORT_BUFFER_RESOLUTION", 10)
	v.SetDefault("PORT_BUFFER_WORKERS", 4)
	v.SetDefault("PORT_BUFFER_INTERVAL", "1h")
	v.SetDefault("SPIRE_ENABLED", false)
	v.SetDefault("SPIRE_API_URL", "https://api.spire.com/graphql")
	v.SetDefault("SPIRE_INTERVAL", "15m")
	v.SetDefault("MARINETRAFFIC_ENABLED", false)
	v.SetDefault("MARINETRAFFIC_INTERVAL", "15m")
	v.SetDefault("VESSEL_SEED_FILE", "data/chalutiers_pelagiques.csv")
	v.SetDefault("PROVIDER_TIMEOUT", "30s")
	v.SetDefault("SCHEDULER_MAX_BACKOFF", "5m")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Geo: GeoConfig{
			SRID: v.GetInt("SRID"),
		},
		PortBuffer: PortBufferConfig{
			RadiusMeters: v.GetFloat64("PORT_BUFFER_RADIUS_METERS"),
			Resolution:   v.GetInt("PORT_BUFFER_RESOLUTION"),
			Workers:      v.GetInt("PORT_BUFFER_WORKERS"),
			Interval:     v.GetDuration("PORT_BUFFER_INTERVAL"),
		},
		Spire: ProviderConfig{
			Enabled:  v.GetBool("SPIRE_ENABLED"),
			URL:      v.GetString("SPIRE_API_URL"),
			Token:    v.GetString("SPIRE_TOKEN"),
			Interval: v.GetDuration("SPIRE_INTERVAL"),
		},
		MarineTraffic: ProviderConfig{
			Enabled:  v.GetBool("MARINETRAFFIC_ENABLED"),
			URL:      v.GetString("MARINETRAFFIC_API_URL"),
			Token:    v.GetString("MARINETRAFFIC_API_KEY"),
			Interval: v.GetDuration("MARINETRAFFIC_INTERVAL"),
		},
		Ingestion: IngestionConfig{
			SeedFile:        v.GetString("VESSEL_SEED_FILE"),
			ProviderTimeout: v.GetDuration("PROVIDER_TIMEOUT"),
		},
		Scheduler: SchedulerConfig{
			MaxBackoff: v.GetDuration("SCHEDULER_MAX_BACKOFF"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Geo.SRID <= 0 {
		return fmt.Errorf("SRID must be positive")
	}

	if c.PortBuffer.RadiusMeters <= 0 {
		return fmt.Errorf("PORT_BUFFER_RADIUS_METERS must be positive")
	}
	if c.PortBuffer.Resolution < 3 || c.PortBuffer.Resolution > 360 {
		return fmt.Errorf("PORT_BUFFER_RESOLUTION must be between 3 and 360")
	}
	if c.PortBuffer.Workers < 1 {
		return fmt.Errorf("PORT_BUFFER_WORKERS must be at least 1")
	}
	if c.PortBuffer.Interval <= 0 {
		return fmt.Errorf("PORT_BUFFER_INTERVAL must be positive")
	}

	if c.Spire.Enabled {
		if c.Spire.URL == "" {
			return fmt.Errorf("SPIRE_API_URL is required when SPIRE_ENABLED is set")
		}
		if c.Spire.Token == "" {
			return fmt.Errorf("SPIRE_TOKEN is required when SPIRE_ENABLED is set")
		}
		if c.Spire.Interval <= 0 {
			return fmt.Errorf("SPIRE_INTERVAL must be positive")
		}
	}
	if c.MarineTraffic.Enabled {
		if c.MarineTraffic.URL == "" {
			return fmt.Errorf("MARINETRAFFIC_API_URL is required when MARINETRAFFIC_ENABLED is set")
		}
		if c.MarineTraffic.Interval <= 0 {
			return fmt.Errorf("MARINETRAFFIC_INTERVAL must be positive")
		}
	}

	if c.Ingestion.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.Scheduler.MaxBackoff <= 0 {
		return fmt.Errorf("SCHEDULER_MAX_BACKOFF must be positive")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// DSN builds the PostgreSQL connection string for pgx.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
