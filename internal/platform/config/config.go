package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	id "certo/pkg/domain"
)

// AuthorityMode selects how provider verification decisions are made.
type AuthorityMode string

const (
	// AuthoritySingle has the system owner verify providers unilaterally.
	AuthoritySingle AuthorityMode = "single"
	// AuthorityQuorum requires a quorum of verified supervisor reviews.
	AuthorityQuorum AuthorityMode = "quorum"
)

// RedisConfig holds optional Redis connection settings. An empty URL means
// Redis is not configured and the mirror is skipped.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds optional audit outbox publishing settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Server captures process-level configuration. The owner identity is fixed at
// deployment and gates every admin operation.
type Server struct {
	Addr            string
	Owner           id.Identity
	AuthorityMode   AuthorityMode
	QuorumThreshold int
	JWTSigningKey   string
	PostgresDSN     string
	Redis           RedisConfig
	Kafka           KafkaConfig
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CERTO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	owner := os.Getenv("CERTO_OWNER_IDENTITY")
	if owner == "" {
		owner = "certo-system-owner"
	}

	mode := AuthorityMode(os.Getenv("CERTO_AUTHORITY_MODE"))
	if mode != AuthoritySingle {
		mode = AuthorityQuorum
	}

	quorum := envInt("CERTO_QUORUM_THRESHOLD", 3)

	jwtSigningKey := os.Getenv("CERTO_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("CERTO_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("CERTO_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "certo.audit"
	}

	return Server{
		Addr:            addr,
		Owner:           id.Identity(owner),
		AuthorityMode:   mode,
		QuorumThreshold: quorum,
		JWTSigningKey:   jwtSigningKey,
		PostgresDSN:     os.Getenv("CERTO_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CERTO_REDIS_URL"),
			PoolSize:     envInt("CERTO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CERTO_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Brokers: brokers, Topic: topic},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
