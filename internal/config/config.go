// Package config loads the server configuration from a YAML file, an optional .env file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// StoreDriverFile keeps catalog and donor data in a JSON file.
	StoreDriverFile = "file"
	// StoreDriverPostgres talks to PostgreSQL directly.
	StoreDriverPostgres = "postgres"
	// StoreDriverSupabase talks to a Supabase project over its REST interface.
	StoreDriverSupabase = "supabase"
)

// Config is the root configuration of the donation server.
type Config struct {
	// Host is the interface the HTTP server binds to. Empty binds all interfaces.
	Host string `yaml:"host"`
	// Port is the HTTP listen port.
	Port int `yaml:"port"`
	// SiteURL is the public address used in share links.
	SiteURL string `yaml:"site-url"`

	Store    StoreConfig    `yaml:"store"`
	Storage  StorageConfig  `yaml:"storage"`
	Bank     BankConfig     `yaml:"bank"`
	Admin    AdminConfig    `yaml:"admin"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

// StoreConfig selects and configures the donation store driver.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	FilePath    string `yaml:"file-path"`
	DatabaseURL string `yaml:"database-url"`
	SupabaseURL string `yaml:"supabase-url"`
	SupabaseKey string `yaml:"supabase-key"`
}

// StorageConfig points at an S3 compatible object store for uploaded media.
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access-key"`
	SecretKey     string `yaml:"secret-key"`
	UseSSL        bool   `yaml:"use-ssl"`
	Region        string `yaml:"region"`
	PublicBaseURL string `yaml:"public-base-url"`
}

// Enabled reports whether uploads can be served.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// BankConfig holds the manual transfer details shown on the payment step.
type BankConfig struct {
	Recipient string `yaml:"recipient"`
	IBAN      string `yaml:"iban"`
	Note      string `yaml:"note"`
}

// AdminConfig holds the shared admin password. A value starting with "$2" is treated as a
// bcrypt hash.
type AdminConfig struct {
	Password string `yaml:"password"`
}

// SessionConfig controls visitor sessions.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// CheckoutConfig tunes the donation wizard.
type CheckoutConfig struct {
	// WriteTimeout bounds the donor/donation write issued on identity submit.
	WriteTimeout time.Duration `yaml:"write-timeout"`
	// RecentLimit is the default page size of the recent donations list.
	RecentLimit int `yaml:"recent-limit"`
}

// Default returns a configuration usable for local development.
func Default() *Config {
	return &Config{
		Port:    8080,
		SiteURL: "https://askidaforma.com",
		Store: StoreConfig{
			Driver:   StoreDriverFile,
			FilePath: "data/askidaforma.json",
		},
		Bank: BankConfig{
			Recipient: "Çocuklar Üşümesin Yardımlaşma ve Dayanışma Derneği",
			IBAN:      "TR36 0001 0011 5098 1058 3050 01",
			Note:      `Alıcı adı kısmına "Çocuklar Üşümesin" yazmanız yeterlidir.`,
		},
		Session: SessionConfig{TTL: 24 * time.Hour},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Checkout: CheckoutConfig{
			WriteTimeout: 15 * time.Second,
			RecentLimit:  50,
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies environment
// overrides. A missing file is not an error; the defaults and environment are used.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			log.WithField("path", path).Warn("config file not found, using defaults")
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file next to the config file, or in the working directory when
// configPath is empty. A missing .env file is ignored.
func LoadDotEnv(configPath string) error {
	envPath := ".env"
	if configPath != "" {
		envPath = filepath.Join(filepath.Dir(configPath), ".env")
	}
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString(&c.Store.DatabaseURL, "DATABASE_URL")
	setString(&c.Store.SupabaseURL, "SUPABASE_URL")
	setString(&c.Store.SupabaseKey, "SUPABASE_KEY")
	setString(&c.Admin.Password, "ADMIN_PASSWORD")
	setString(&c.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.PublicBaseURL, "MINIO_PUBLIC_BASE_URL")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else {
			log.WithField("value", v).Warn("ignoring invalid PORT")
		}
	}
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverFile
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
	c.Storage.PublicBaseURL = strings.TrimRight(c.Storage.PublicBaseURL, "/")
	if c.Session.TTL <= 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Checkout.WriteTimeout <= 0 {
		c.Checkout.WriteTimeout = 15 * time.Second
	}
	if c.Checkout.RecentLimit <= 0 {
		c.Checkout.RecentLimit = 50
	}
}

// Validate reports configuration errors that prevent the server from starting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.Store.Driver {
	case StoreDriverFile:
		if c.Store.FilePath == "" {
			return fmt.Errorf("config: store.file-path is required for the file driver")
		}
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config: store.database-url is required for the postgres driver")
		}
	case StoreDriverSupabase:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return fmt.Errorf("config: store.supabase-url and store.supabase-key are required for the supabase driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Bank.IBAN == "" || c.Bank.Recipient == "" {
		return fmt.Errorf("config: bank.recipient and bank.iban are required")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
