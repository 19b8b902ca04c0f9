package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/insighthink/internal/auth"
	"github.com/starford/insighthink/internal/blobstore"
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Blob drivers.
const (
	BlobsGridFS = "gridfs"
	BlobsDisk   = "disk"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Blobs   BlobsConfig       `yaml:"blobs"`
	Auth    AuthConfig        `yaml:"auth"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Blobs.Validate(); err != nil {
		return fmt.Errorf("blobs: %w", err)
	}
	if c.Blobs.Driver == BlobsGridFS && c.Store.Driver != StoreMongo {
		return fmt.Errorf("blobs: driver %q requires the %q store", BlobsGridFS, StoreMongo)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver string       `yaml:"driver"`
	Mongo  MongoConfig  `yaml:"mongo"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreMongo, StoreSQLite)),
	); err != nil {
		return err
	}
	if c.Driver == StoreMongo {
		return c.Mongo.Validate()
	}
	return c.SQLite.Validate()
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Validate validates the MongoDB configuration.
func (c *MongoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required, is.RequestURI),
		validation.Field(&c.Database, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BlobsConfig selects where uploaded files are kept.
type BlobsConfig struct {
	Driver string     `yaml:"driver"`
	Bucket string     `yaml:"bucket"`
	Disk   DiskConfig `yaml:"disk"`
}

// Validate validates the blob store configuration.
func (c *BlobsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(BlobsGridFS, BlobsDisk)),
	); err != nil {
		return err
	}
	if c.Driver == BlobsDisk {
		return c.Disk.Validate()
	}
	return nil
}

// DiskConfig holds the upload directory. It is created on demand.
type DiskConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the disk configuration.
func (c *DiskConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// AuthConfig holds session configuration.
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionSecret, validation.Required, validation.Length(auth.MinSecretLength, 0)),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.CookieName, validation.Required),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values. The
// session secret has no default and must be supplied.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			Mongo: MongoConfig{
				Database: "insighthink",
			},
			SQLite: SQLiteConfig{
				Path: "./insighthink.db",
			},
		},
		Blobs: BlobsConfig{
			Driver: BlobsDisk,
			Bucket: blobstore.DefaultBucket,
			Disk: DiskConfig{
				Dir: "./uploads",
			},
		},
		Auth: AuthConfig{
			SessionTTL: 7 * 24 * time.Hour,
			CookieName: auth.DefaultCookieName,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
