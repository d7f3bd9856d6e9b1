package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ServersFile string // path to the servers.yaml file listing monitored game servers

	// Reconciliation
	ReconcileInterval time.Duration // interval between reconciliation passes (default: 30s)
	RepairCooldown    time.Duration // minimum gap between repairs of the same zone (default: 60s)
	TransitionWindow  time.Duration // grace period after disconnect before full lockdown (default: 30s)
	TransitionColor   string        // zone color during the transitional window, "r,g,b"
	BatchSize         int           // max zones reconciled per pass per server (default: 10)
	Workers           int           // concurrent reconcile workers per server (default: 4)
	MaxRepairFailures int           // consecutive failures before a zone is flagged (default: 3)

	// Sweep
	SweepInterval time.Duration // interval between discovery sweeps (default: 5m)

	// Console
	ConsoleTimeout time.Duration // per-command webrcon timeout (default: 5s)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("ZORP_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("ZORP_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("ZORP_LOG_LEVEL", "info"),
		PrettyLog: mustBool("ZORP_PRETTY_LOG", true),

		// Monitored servers
		ServersFile: getenv("ZORP_SERVERS_FILE", "/app/servers.yaml"),

		// Reconciliation
		ReconcileInterval: mustDuration("ZORP_RECONCILE_INTERVAL", 30*time.Second),
		RepairCooldown:    mustDuration("ZORP_REPAIR_COOLDOWN", 60*time.Second),
		TransitionWindow:  mustDuration("ZORP_TRANSITION_WINDOW", 30*time.Second),
		TransitionColor:   getenv("ZORP_TRANSITION_COLOR", "255,255,0"),
		BatchSize:         getenvInt("ZORP_BATCH_SIZE", 10),
		Workers:           getenvInt("ZORP_WORKERS", 4),
		MaxRepairFailures: getenvInt("ZORP_MAX_REPAIR_FAILURES", 3),

		// Sweep
		SweepInterval: mustDuration("ZORP_SWEEP_INTERVAL", 5*time.Minute),

		// Console
		ConsoleTimeout: mustDuration("ZORP_CONSOLE_TIMEOUT", 5*time.Second),

		// Redis settings
		RedisAddr:             requireEnv("ZORP_REDIS_ADDR"),
		RedisUser:             getenv("ZORP_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("ZORP_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("ZORP_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("ZORP_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("ZORP_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("ZORP_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("ZORP_TRUST_PROXY", true),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: ZORP_REDIS_PASSWORD is required when ZORP_REDIS_PASSWORD_REQUIRED=true")
	}

	if cfg.BatchSize < 1 {
		panic("❌ FATAL: ZORP_BATCH_SIZE must be at least 1")
	}
	if cfg.Workers < 1 {
		panic("❌ FATAL: ZORP_WORKERS must be at least 1")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
