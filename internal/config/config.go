package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Backends selectable for the message store and recent-conversation index.
const (
	BackendMemory  = "memory"
	BackendSurreal = "surreal"
	BackendRedis   = "redis"
)

// Config holds all configuration for the relay service.
type Config struct {
	// Addr is the listen address for the HTTP/WebSocket transport.
	Addr string

	// StoreBackend selects the message-store implementation: memory or surreal.
	StoreBackend string
	// IndexBackend selects the recent-index implementation: memory or redis.
	IndexBackend string

	SurrealURL  string
	SurrealUser string
	SurrealPass string
	SurrealNS   string
	SurrealDB   string

	RedisAddr string

	// IdentityFile points at the JSON user directory. Empty disables the
	// file-backed directory.
	IdentityFile string

	// ArchiveDir is where reaped conversation logs are written before deletion.
	ArchiveDir string

	// WSOrigins lists the host patterns allowed to open cross-origin
	// WebSocket connections. Empty means same-origin only.
	WSOrigins []string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:         getEnv("INBOXD_ADDR", ":8080"),
		StoreBackend: getEnv("INBOXD_STORE_BACKEND", BackendMemory),
		IndexBackend: getEnv("INBOXD_INDEX_BACKEND", BackendMemory),
		SurrealURL:   os.Getenv("SURREAL_URL"),
		SurrealUser:  os.Getenv("SURREAL_USER"),
		SurrealPass:  os.Getenv("SURREAL_PASS"),
		SurrealNS:    os.Getenv("SURREAL_NS"),
		SurrealDB:    os.Getenv("SURREAL_DB"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		IdentityFile: os.Getenv("INBOXD_IDENTITY_FILE"),
		ArchiveDir:   getEnv("INBOXD_ARCHIVE_DIR", "archive"),
		WSOrigins:    splitList(os.Getenv("INBOXD_WS_ORIGINS")),
	}

	if cfg.StoreBackend == BackendSurreal && (cfg.SurrealURL == "" || cfg.SurrealNS == "" || cfg.SurrealDB == "") {
		log.Fatal("Store backend is surreal but SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}

	return cfg
}

// splitList parses a comma-separated env value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
