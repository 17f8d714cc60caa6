package config

import (
	"fmt"
	"os"
	"strconv"
)

// ClickHouseConfig holds the audit database connection settings
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

// AuthentikConfig holds the OAuth2 client settings for admin endpoints
type AuthentikConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ExportConfig holds the S3/R2 bucket settings used to publish exports
type ExportConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Config is the runtime configuration of the service
type Config struct {
	Environment string
	Edition     string

	DBDriver    string
	SQLiteFile  string
	DatabaseURL string

	NATSURL     string
	NATSSubject string

	Port     string
	GRPCPort string

	ClickHouse ClickHouseConfig
	Authentik  AuthentikConfig
	Export     ExportConfig
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Environment: "development",
		Edition:     "wk2022",
		DBDriver:    "memory",
		SQLiteFile:  "dev.sqlite",
		NATSURL:     "nats://localhost:4222",
		NATSSubject: "pool.events",
		Port:        "3000",
		GRPCPort:    "50051",
		ClickHouse: ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "default",
			User:     "default",
		},
		Authentik: AuthentikConfig{
			RedirectURL: "http://localhost:3000/auth/callback",
		},
		Export: ExportConfig{
			Region: "auto",
		},
	}
}

// FromEnv overlays environment variables on Default
func FromEnv() Config {
	c := Default()
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Environment, "ENVIRONMENT")
	set(&c.Edition, "EDITION")
	set(&c.DBDriver, "DB_DRIVER")
	set(&c.SQLiteFile, "SQLITE_FILE")
	set(&c.DatabaseURL, "DATABASE_URL")
	set(&c.NATSURL, "NATS_URL")
	set(&c.NATSSubject, "NATS_SUBJECT")
	set(&c.Port, "PORT")
	set(&c.GRPCPort, "GRPC_PORT")
	set(&c.ClickHouse.Addr, "CLICKHOUSE_ADDR")
	set(&c.ClickHouse.Database, "CLICKHOUSE_DB")
	set(&c.ClickHouse.User, "CLICKHOUSE_USER")
	set(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	set(&c.Authentik.BaseURL, "AUTHENTIK_BASE_URL")
	set(&c.Authentik.ClientID, "AUTHENTIK_CLIENT_ID")
	set(&c.Authentik.ClientSecret, "AUTHENTIK_CLIENT_SECRET")
	set(&c.Authentik.RedirectURL, "AUTHENTIK_REDIRECT_URL")
	set(&c.Export.Bucket, "EXPORT_BUCKET")
	set(&c.Export.Endpoint, "EXPORT_ENDPOINT")
	set(&c.Export.Region, "EXPORT_REGION")
	set(&c.Export.AccessKeyID, "EXPORT_ACCESS_KEY_ID")
	set(&c.Export.SecretAccessKey, "EXPORT_SECRET_ACCESS_KEY")
	set(&c.Export.PublicBaseURL, "EXPORT_PUBLIC_BASE_URL")

	return c
}

// Development reports whether in-process stand-ins replace real infrastructure
func (c *Config) Development() bool {
	return c.Environment == "" || c.Environment == "development"
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "memory", "sqlite":
	case "postgres":
		// development falls back to a SQLite stand-in
		if c.DatabaseURL == "" && !c.Development() {
			return fmt.Errorf("DATABASE_URL is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (valid: memory, sqlite, postgres)", c.DBDriver)
	}

	for name, port := range map[string]string{"PORT": c.Port, "GRPC_PORT": c.GRPCPort} {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid %s %q", name, port)
		}
	}

	if !c.Development() {
		if c.Authentik.BaseURL == "" || c.Authentik.ClientID == "" || c.Authentik.ClientSecret == "" {
			return fmt.Errorf("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET are required for production")
		}
	}

	return nil
}

// ExportEnabled reports whether an upload bucket is configured
func (c *Config) ExportEnabled() bool {
	return c.Export.Bucket != "" && c.Export.AccessKeyID != "" && c.Export.SecretAccessKey != ""
}
