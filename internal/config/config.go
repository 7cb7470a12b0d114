package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Registry sources.
const (
	RegistrySourceFile     = "file"
	RegistrySourcePostgres = "postgres"
)

// DefaultTerritoryColors is the palette assigned to territories in creation order.
var DefaultTerritoryColors = []string{
	"#6366f1", "#ec4899", "#14b8a6", "#f59e0b", "#8b5cf6",
	"#06b6d4", "#f43f5e", "#22c55e", "#3b82f6", "#a855f7",
}

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Registry  RegistryConfig
	Census    CensusConfig
	Cache     CacheConfig
	Territory TerritoryConfig
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
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// RegistryConfig selects where geographic unit boundaries come from.
type RegistryConfig struct {
	Source           string
	CountyBoundaries string
	ZipBoundaries    []string
}

// CensusConfig holds the Census data API client settings.
type CensusConfig struct {
	BaseURL   string
	APIKey    string
	Year      int
	Timeout   time.Duration
	RateLimit float64
}

// CacheConfig holds the optional Redis tier of the statistics cache.
type CacheConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// TerritoryConfig holds territory defaults.
type TerritoryConfig struct {
	Colors []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory (or ENV_FILE) is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "territories")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("REGISTRY_SOURCE", RegistrySourceFile)
	v.SetDefault("COUNTY_BOUNDARIES", "data/us_counties.json")
	v.SetDefault("ZIP_BOUNDARIES", "")
	v.SetDefault("CENSUS_BASE_URL", "https://api.census.gov/data")
	v.SetDefault("CENSUS_YEAR", 2022)
	v.SetDefault("CENSUS_TIMEOUT", "10s")
	v.SetDefault("CENSUS_RATE_LIMIT", 10.0)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STATS_CACHE_TTL", "0s")
	v.SetDefault("TERRITORY_COLORS", strings.Join(DefaultTerritoryColors, ","))

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
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Registry: RegistryConfig{
			Source:           strings.ToLower(strings.TrimSpace(v.GetString("REGISTRY_SOURCE"))),
			CountyBoundaries: strings.TrimSpace(v.GetString("COUNTY_BOUNDARIES")),
			ZipBoundaries:    parseList(v.GetString("ZIP_BOUNDARIES")),
		},
		Census: CensusConfig{
			BaseURL:   strings.TrimRight(v.GetString("CENSUS_BASE_URL"), "/"),
			APIKey:    v.GetString("CENSUS_API_KEY"),
			Year:      v.GetInt("CENSUS_YEAR"),
			Timeout:   v.GetDuration("CENSUS_TIMEOUT"),
			RateLimit: v.GetFloat64("CENSUS_RATE_LIMIT"),
		},
		Cache: CacheConfig{
			RedisEnabled:  v.GetBool("REDIS_ENABLED"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTL:           v.GetDuration("STATS_CACHE_TTL"),
		},
		Territory: TerritoryConfig{
			Colors: parseList(v.GetString("TERRITORY_COLORS")),
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

	switch c.Registry.Source {
	case RegistrySourceFile:
		if c.Registry.CountyBoundaries == "" && len(c.Registry.ZipBoundaries) == 0 {
			return fmt.Errorf("COUNTY_BOUNDARIES or ZIP_BOUNDARIES is required for the file registry")
		}
	case RegistrySourcePostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("REGISTRY_SOURCE must be %q or %q, got %q",
			RegistrySourceFile, RegistrySourcePostgres, c.Registry.Source)
	}

	if c.Census.BaseURL == "" {
		return fmt.Errorf("CENSUS_BASE_URL is required")
	}
	if c.Census.Year < 2009 {
		return fmt.Errorf("CENSUS_YEAR must be 2009 or later")
	}
	if c.Census.Timeout <= 0 {
		return fmt.Errorf("CENSUS_TIMEOUT must be positive")
	}
	if c.Census.RateLimit <= 0 {
		return fmt.Errorf("CENSUS_RATE_LIMIT must be positive")
	}

	if c.Cache.RedisEnabled && c.Cache.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is true")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL must be non-negative")
	}

	if len(c.Territory.Colors) == 0 {
		return fmt.Errorf("TERRITORY_COLORS must contain at least one color")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// Validate checks the PostgreSQL settings.
func (d DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseList splits a comma-separated string into trimmed, non-empty items.
func parseList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
