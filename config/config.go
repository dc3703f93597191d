package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all daemon configuration.
type Config struct {
	// Server
	APIPort string
	Debug   bool

	// HTLC coordinator
	DriverTimeout time.Duration

	// MEV shield
	RevealWindow  time.Duration
	BatchInterval time.Duration

	// Order splitter
	MinFillFloor  uint64
	RetryInterval time.Duration

	// Quote cache
	QuoteCacheSize int
	QuoteCacheTTL  time.Duration

	// LND (Lightning family driver; optional)
	LNDHost         string
	LNDTLSCertPath  string
	LNDMacaroonPath string

	// EVM family driver (optional)
	EVMRPCEndpoint string
	EVMChainID     int64
	EVMEscrow      string
	EVMPrivKey     string
	EVMMinConfs    uint64
}

// Load reads configuration from environment variables, with an
// optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithField("error", err).Warn("could not load .env file")
	}

	return &Config{
		APIPort: getEnv("API_PORT", "8080"),
		Debug:   getEnvAsBool("DEBUG", false),

		DriverTimeout: getEnvAsDuration("DRIVER_TIMEOUT", 30*time.Second),

		RevealWindow:  getEnvAsDuration("REVEAL_WINDOW", 30*time.Second),
		BatchInterval: getEnvAsDuration("BATCH_INTERVAL", 5*time.Second),

		MinFillFloor:  getEnvAsUint("MIN_FILL_FLOOR", 100),
		RetryInterval: getEnvAsDuration("FILL_RETRY_INTERVAL", 10*time.Second),

		QuoteCacheSize: getEnvAsInt("QUOTE_CACHE_SIZE", 256),
		QuoteCacheTTL:  getEnvAsDuration("QUOTE_CACHE_TTL", 3*time.Second),

		LNDHost:         getEnv("LND_HOST", ""),
		LNDTLSCertPath:  getEnv("LND_TLS_CERT", ""),
		LNDMacaroonPath: getEnv("LND_MACAROON", ""),

		EVMRPCEndpoint: getEnv("EVM_RPC", ""),
		EVMChainID:     int64(getEnvAsInt("EVM_CHAIN_ID", 1)),
		EVMEscrow:      getEnv("EVM_ESCROW", ""),
		EVMPrivKey:     getEnv("EVM_PRIVKEY", ""),
		EVMMinConfs:    getEnvAsUint("EVM_MIN_CONFS", 1),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsUint(key string, defaultVal uint64) uint64 {
	if value, err := strconv.ParseUint(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultVal
	}
	if value, err := time.ParseDuration(raw); err == nil {
		return value
	}
	return defaultVal
}
