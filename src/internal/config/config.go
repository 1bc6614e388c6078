package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=ledger_engine_db;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultHTTPAddr = ":8080"
const defaultChannelID = "LedgerApp"

// bcrypt hash of "LedgerKey001", local development only.
const defaultChannelKeyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

const defaultMaxApplyAttempts = 5
const defaultLockWaitTimeout = 5 * time.Second
const defaultIdempotencyRetention = 48 * time.Hour
const defaultIdempotencyInFlightTTL = 2 * time.Minute

type Config struct {
	DatabaseDSN            string
	MigrationsDir          string
	HTTPAddr               string
	ChannelID              string
	ChannelKeyHash         string
	MaxApplyAttempts       int
	LockWaitTimeout        time.Duration
	IdempotencyRetention   time.Duration
	IdempotencyInFlightTTL time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	conn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if conn == "" {
		conn = defaultConnectionString
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	channelID := strings.TrimSpace(os.Getenv("CHANNEL_ID"))
	if channelID == "" {
		channelID = defaultChannelID
	}

	channelKeyHash := strings.TrimSpace(os.Getenv("CHANNEL_KEY_HASH"))
	if channelKeyHash == "" {
		channelKeyHash = defaultChannelKeyHash
	}

	maxApplyAttempts, err := intFromEnv("MAX_APPLY_ATTEMPTS", defaultMaxApplyAttempts)
	if err != nil {
		return Config{}, err
	}
	if maxApplyAttempts < 1 {
		return Config{}, fmt.Errorf("MAX_APPLY_ATTEMPTS must be at least 1")
	}

	lockWaitTimeout, err := durationFromEnv("LOCK_WAIT_TIMEOUT", defaultLockWaitTimeout)
	if err != nil {
		return Config{}, err
	}

	retention, err := durationFromEnv("IDEMPOTENCY_RETENTION", defaultIdempotencyRetention)
	if err != nil {
		return Config{}, err
	}

	inFlightTTL, err := durationFromEnv("IDEMPOTENCY_INFLIGHT_TTL", defaultIdempotencyInFlightTTL)
	if err != nil {
		return Config{}, err
	}

	// The default is relative to the repo root; deployments running the
	// binary elsewhere must point MIGRATIONS_DIR at the installed files.
	migrationsDir := strings.TrimSpace(os.Getenv("MIGRATIONS_DIR"))
	if migrationsDir == "" {
		migrationsDir = filepath.Join("src", "migrations")
	}

	return Config{
		DatabaseDSN:            NormalizeConnectionString(conn),
		MigrationsDir:          migrationsDir,
		HTTPAddr:               httpAddr,
		ChannelID:              channelID,
		ChannelKeyHash:         channelKeyHash,
		MaxApplyAttempts:       maxApplyAttempts,
		LockWaitTimeout:        lockWaitTimeout,
		IdempotencyRetention:   retention,
		IdempotencyInFlightTTL: inFlightTTL,
	}, nil
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}

	return value, nil
}

func durationFromEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 48h: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", name)
	}

	return value, nil
}

// NormalizeConnectionString accepts both libpq keyword strings and the
// semicolon-separated form used by older deployment tooling.
func NormalizeConnectionString(raw string) string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
