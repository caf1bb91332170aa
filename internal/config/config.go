// Package config loads server-level settings from the environment (and an
// optional .env file) plus a per-module option table from an optional TOML
// file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server-level settings consumed by the accept loop, the
// worker pool, and the TLS/protocol toggles.
type Config struct {
	ListenAddr      string
	BackendAddr     string
	BufferSize      int
	ClientTimeoutSeconds  int
	BackendTimeoutSeconds int
	MaxHeaderSize   int
	MaxBodySize     int
	MaxConnections  int
	WorkerThreads   int
	ShutdownTimeoutSeconds int
	LogLevel        string
	TLSCertPath     string
	TLSKeyPath      string
	HTTP2Enabled    bool
	HTTP3Enabled    bool
	HTTP3Port       int
	ModuleTOMLPath  string
}

// Load reads configuration from environment variables and an optional .env
// file, falling back to documented defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:             getEnv("GATEWAYCORE_LISTEN_ADDR", ":8080"),
		BackendAddr:            getEnv("GATEWAYCORE_BACKEND_ADDR", "127.0.0.1:9000"),
		BufferSize:             getEnvInt("GATEWAYCORE_BUFFER_SIZE", 8192),
		ClientTimeoutSeconds:   getEnvInt("GATEWAYCORE_CLIENT_TIMEOUT_SEC", 30),
		BackendTimeoutSeconds:  getEnvInt("GATEWAYCORE_BACKEND_TIMEOUT_SEC", 10),
		MaxHeaderSize:          getEnvInt("GATEWAYCORE_MAX_HEADER_SIZE", 65536),
		MaxBodySize:            getEnvInt("GATEWAYCORE_MAX_BODY_SIZE", 16*1024*1024),
		MaxConnections:         getEnvInt("GATEWAYCORE_MAX_CONNECTIONS", 1024),
		WorkerThreads:          getEnvInt("GATEWAYCORE_WORKER_THREADS", 0),
		ShutdownTimeoutSeconds: getEnvInt("GATEWAYCORE_SHUTDOWN_TIMEOUT_SEC", 15),
		LogLevel:               getEnv("GATEWAYCORE_LOG_LEVEL", "info"),
		TLSCertPath:            getEnv("GATEWAYCORE_TLS_CERT", ""),
		TLSKeyPath:             getEnv("GATEWAYCORE_TLS_KEY", ""),
		HTTP2Enabled:           getEnvBool("GATEWAYCORE_HTTP2", true),
		HTTP3Enabled:           getEnvBool("GATEWAYCORE_HTTP3", false),
		HTTP3Port:              getEnvInt("GATEWAYCORE_HTTP3_PORT", 8443),
		ModuleTOMLPath:         getEnv("GATEWAYCORE_MODULE_CONFIG", ""),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
