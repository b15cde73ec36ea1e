package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything main needs to wire the service. All values come
// from the environment (a local .env is honored in development) so deployments
// stay twelve-factor.
type Config struct {
	Addr        string
	AdminJWTKey string

	RedisURL    string
	PostgresURL string

	// IdentityURL points at the account system that owns login capability.
	// Empty means the in-memory provider, which is only useful in development.
	IdentityURL   string
	IdentityToken string

	KafkaBrokers  []string
	DeletionTopic string
	ConsumerGroup string

	ArchiveDir string

	// ContentGracePeriod is the window after hiding during which the author
	// may appeal, and therefore also the purge deadline.
	ContentGracePeriod time.Duration
	// AuditRetention bounds how long admin action log entries stay in the
	// hot store before the retention sweeper removes them.
	AuditRetention time.Duration
	// AppealRetention keeps appeals reviewable past the relevant expiry.
	AppealRetention time.Duration
	// SweepInterval is how often the retention sweeper scans for expired
	// records. This is storage-layer TTL emulation, not ban expiry: ban
	// expiry stays lazy on read paths.
	SweepInterval time.Duration

	// AdminActionsPerHour caps moderation throughput per admin.
	AdminActionsPerHour int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	// Best effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	return Config{
		Addr:                envOr("WARDEN_ADDR", ":8080"),
		AdminJWTKey:         envOr("WARDEN_JWT_KEY", "dev-secret-key-change-in-production"),
		RedisURL:            os.Getenv("WARDEN_REDIS_URL"),
		PostgresURL:         os.Getenv("WARDEN_POSTGRES_URL"),
		IdentityURL:         os.Getenv("WARDEN_IDENTITY_URL"),
		IdentityToken:       os.Getenv("WARDEN_IDENTITY_TOKEN"),
		KafkaBrokers:        splitList(envOr("WARDEN_KAFKA_BROKERS", "")),
		DeletionTopic:       envOr("WARDEN_DELETION_TOPIC", "warden.deletions"),
		ConsumerGroup:       envOr("WARDEN_CONSUMER_GROUP", "warden-archiver"),
		ArchiveDir:          envOr("WARDEN_ARCHIVE_DIR", "/var/lib/warden/archive"),
		ContentGracePeriod:  envDuration("WARDEN_CONTENT_GRACE", 7*24*time.Hour),
		AuditRetention:      envDuration("WARDEN_AUDIT_RETENTION", 30*24*time.Hour),
		AppealRetention:     envDuration("WARDEN_APPEAL_RETENTION", 90*24*time.Hour),
		SweepInterval:       envDuration("WARDEN_SWEEP_INTERVAL", time.Minute),
		AdminActionsPerHour: envInt("WARDEN_ADMIN_ACTIONS_PER_HOUR", 120),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
