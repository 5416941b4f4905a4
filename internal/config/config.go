// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// defaultAddInID is the add-in identity the dashboard widget registered with
// the platform. Every credential-mapping record is scoped to this id;
// override it only when pointing the service at a differently registered
// add-in.
const defaultAddInID = "a5V3sMq2hkk-VJbnSTbCqjw"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	PlatformServer   string
	PlatformDatabase string
	PlatformUsername string
	PlatformPassword string
	AddInID          string

	ReconcileInterval time.Duration
	ListenAddr        string
	DBPath            string

	// SecretKey is the AES-256 key for encrypting stored platform
	// credentials. nil when FLEETPANEL_SECRET_KEY is unset, in which case
	// credential persistence is disabled and only env credentials work.
	SecretKey []byte
}

// HasPlatformCredentials returns true when every platform sign-in field is
// set. Used by the composition root to decide whether to build a real
// platform client at startup or start with a nil client in the provider.
func (c *Config) HasPlatformCredentials() bool {
	return c.PlatformServer != "" && c.PlatformDatabase != "" &&
		c.PlatformUsername != "" && c.PlatformPassword != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is read first when present.
// Platform credentials (FLEETPANEL_PLATFORM_SERVER, _DATABASE, _USERNAME,
// _PASSWORD) are optional; if absent, the app starts but reconciliation is
// inactive until credentials are provided through the API. Optional variables
// with defaults: FLEETPANEL_RECONCILE_INTERVAL (5m), FLEETPANEL_LISTEN_ADDR
// (127.0.0.1:8080), FLEETPANEL_DB_PATH (fleetpanel.db), FLEETPANEL_ADDIN_ID.
func Load() (*Config, error) {
	_ = godotenv.Load()

	server := os.Getenv("FLEETPANEL_PLATFORM_SERVER")
	database := os.Getenv("FLEETPANEL_PLATFORM_DATABASE")
	username := os.Getenv("FLEETPANEL_PLATFORM_USERNAME")
	password := os.Getenv("FLEETPANEL_PLATFORM_PASSWORD")

	addInID := defaultAddInID
	if v, ok := os.LookupEnv("FLEETPANEL_ADDIN_ID"); ok && v != "" {
		addInID = v
	}

	reconcileInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("FLEETPANEL_RECONCILE_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FLEETPANEL_RECONCILE_INTERVAL has invalid duration %q: %w", v, err)
		}
		reconcileInterval = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("FLEETPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "fleetpanel.db"
	if v, ok := os.LookupEnv("FLEETPANEL_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("FLEETPANEL_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("FLEETPANEL_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("FLEETPANEL_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		PlatformServer:    server,
		PlatformDatabase:  database,
		PlatformUsername:  username,
		PlatformPassword:  password,
		AddInID:           addInID,
		ReconcileInterval: reconcileInterval,
		ListenAddr:        listenAddr,
		DBPath:            dbPath,
		SecretKey:         secretKey,
	}, nil
}
