// Package config loads the runtime settings of the contact API from environment variables.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all settings of the service. Each field maps to one environment variable.
type Config struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	DBHost          string        `env:"DBHOST"           envDefault:"localhost:3306"`
	DBUser          string        `env:"DBUSER"`
	DBPassword      string        `env:"DBPWD"`
	DBName          string        `env:"DBNAME"           envDefault:"test"`
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTTTL          time.Duration `env:"JWT_TTL"          envDefault:"1h"`
	BcryptCost      int           `env:"BCRYPT_COST"`
	GinLogging      string        `env:"GIN_LOGGING"      envDefault:"on"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT"       envDefault:"text"`
	LoginRateLimit  float64       `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginRateBurst  int           `env:"LOGIN_RATE_BURST" envDefault:"10"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// TrustedProxies lists the proxy addresses or CIDRs whose X-Forwarded-For header is
	// believed. Empty means the client ip is always the peer address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// Load parses the environment into a Config and checks it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase parses the environment like Load but only needs the database settings. Tools
// that never issue tokens use it.
func LoadDatabase() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES: %q is neither an ip nor a CIDR", proxy)
			}
		}
	}
	return nil
}

// DSN returns the MySQL data source name. parseTime is required so that DATETIME columns scan
// into time.Time.
func (c *Config) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.DBUser
	dsn.Passwd = c.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = c.DBHost
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	return dsn.FormatDSN()
}

// RequestLogging reports whether HTTP requests should be logged.
func (c *Config) RequestLogging() bool {
	return !strings.EqualFold(c.GinLogging, "off")
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
