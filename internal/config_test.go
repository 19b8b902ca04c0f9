package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/insighthink/pkg/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Auth.SessionSecret = testSecret
	return cfg
}

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without a session secret should fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with secret should pass: %v", err)
	}
}

func TestAuthConfig_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SessionSecret = "short"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("short secret should fail")
	}
	if !strings.Contains(err.Error(), "session_secret") && !strings.Contains(err.Error(), "SessionSecret") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_TTLTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SessionTTL = time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("ttl below one minute should fail")
	}
}

func TestStoreConfig_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown store driver should fail")
	}
}

func TestStoreConfig_MongoNeedsURI(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = StoreMongo
	if err := cfg.Validate(); err == nil {
		t.Fatal("mongo store without uri should fail")
	}
	cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("mongo store with uri should pass: %v", err)
	}
}

func TestBlobsConfig_GridFSRequiresMongo(t *testing.T) {
	cfg := validConfig()
	cfg.Blobs.Driver = BlobsGridFS
	err := cfg.Validate()
	if err == nil {
		t.Fatal("gridfs blobs on sqlite store should fail")
	}
	if !strings.Contains(err.Error(), "requires") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Store.Driver = StoreMongo
	cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("gridfs blobs on mongo store should pass: %v", err)
	}
}

func TestBlobsConfig_DiskNeedsDir(t *testing.T) {
	cfg := validConfig()
	cfg.Blobs.Disk.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("disk blobs without dir should fail")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("INSIGHTHINK_TEST_SECRET", testSecret)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
store:
  driver: sqlite
  sqlite:
    path: ./test.db
auth:
  session_secret: ${INSIGHTHINK_TEST_SECRET}
  session_ttl: 2h
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.App.HTTP.Port)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %s, want DEBUG", cfg.App.LogLevel)
	}
	if cfg.Auth.SessionSecret != testSecret {
		t.Errorf("secret not expanded: %q", cfg.Auth.SessionSecret)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("ttl = %s, want 2h", cfg.Auth.SessionTTL)
	}
	if cfg.Blobs.Disk.Dir != "./uploads" {
		t.Errorf("defaults lost: blobs dir = %q", cfg.Blobs.Disk.Dir)
	}
}
