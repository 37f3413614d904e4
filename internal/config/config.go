package config

import (
	"os"
	"strconv"
	"time"
)

// Storage backends selectable with NOTARY_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// DialTimeoutSec bounds one connection attempt; ConnectTimeout bounds how long
// startup keeps retrying the first ping.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	ApplicationName    string
	DialTimeoutSec     int
	ConnectTimeout     time.Duration
}

// MinIOConfig holds object storage settings for MinIO.
// The bucket is created with object locking enabled when missing.
type MinIOConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	RetentionYears int
}

// LedgerConfig describes the EVM JSON-RPC endpoint used for payment checks
// and the operator account that funds ledger operations.
type LedgerConfig struct {
	RPCURL             string
	Recipient          string
	PriceWei           string
	OperatorAddress    string
	MinOperatorBalance string
	PollAttempts       int
	PollInterval       time.Duration
}

// StoreConfig tunes the immutable publish protocol.
type StoreConfig struct {
	FirstChunkBytes int
}

// TokenConfig names proof-token collections.
type TokenConfig struct {
	Name   string
	Symbol string
}

// EventLogConfig holds the shared topic settings.
type EventLogConfig struct {
	TopicID      string
	TopicMemo    string
	PollInterval time.Duration
}

// AgentConfig controls the attestation agent subscription.
type AgentConfig struct {
	Enabled       bool
	StartFrom     string
	ReadyAttempts int
	ReadyInterval time.Duration
	SigningKeyHex string
}

// OpenAIConfig holds summarizer settings. An empty APIKey disables summaries.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost         string
	Port            string
	Timezone        string
	Backend         string
	MaxFileMB       int
	ExternalTimeout time.Duration
	Database        DatabaseConfig
	MinIO           MinIOConfig
	Ledger          LedgerConfig
	Store           StoreConfig
	Token           TokenConfig
	EventLog        EventLogConfig
	Agent           AgentConfig
	OpenAI          OpenAIConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:         getEnv("APP_HOST", "localhost:8080"),
		Port:            getEnv("PORT", "8080"),
		Timezone:        getEnv("APP_TIMEZONE", "UTC"),
		Backend:         getEnv("NOTARY_BACKEND", BackendPostgres),
		MaxFileMB:       getEnvInt("MAX_FILE_MB", 12),
		ExternalTimeout: getEnvDuration("EXTERNAL_TIMEOUT", 60*time.Second),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "notary"),
			DialTimeoutSec:     getEnvInt("DB_DIAL_TIMEOUT_SEC", 5),
			ConnectTimeout:     getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", ""),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:      getEnv("MINIO_SECRET_KEY", ""),
			Bucket:         getEnv("MINIO_BUCKET", ""),
			UseSSL:         getEnvBool("MINIO_USE_SSL", false),
			RetentionYears: getEnvInt("MINIO_RETENTION_YEARS", 100),
		},
		Ledger: LedgerConfig{
			RPCURL:             getEnv("LEDGER_RPC_URL", "https://testnet.hashio.io/api"),
			Recipient:          getEnv("TREASURY_ADDRESS", ""),
			PriceWei:           getEnv("PRICE_WEI", "0"),
			OperatorAddress:    getEnv("OPERATOR_ADDRESS", ""),
			MinOperatorBalance: getEnv("OPERATOR_MIN_BALANCE_WEI", "30000000000000000000"),
			PollAttempts:       getEnvInt("PAYMENT_POLL_ATTEMPTS", 12),
			PollInterval:       getEnvDuration("PAYMENT_POLL_INTERVAL", 2500*time.Millisecond),
		},
		Store: StoreConfig{
			FirstChunkBytes: getEnvInt("STORE_FIRST_CHUNK_BYTES", 4096),
		},
		Token: TokenConfig{
			Name:   getEnv("TOKEN_NAME", "Notary Proof"),
			Symbol: getEnv("TOKEN_SYMBOL", "NTP1"),
		},
		EventLog: EventLogConfig{
			TopicID:      getEnv("LOG_TOPIC_ID", ""),
			TopicMemo:    getEnv("LOG_TOPIC_MEMO", "Notary notarizations"),
			PollInterval: getEnvDuration("LOG_POLL_INTERVAL", 500*time.Millisecond),
		},
		Agent: AgentConfig{
			Enabled:       getEnvBool("AGENT_ENABLED", true),
			StartFrom:     getEnv("AGENT_START", "beginning"),
			ReadyAttempts: getEnvInt("AGENT_READY_ATTEMPTS", 20),
			ReadyInterval: getEnvDuration("AGENT_READY_INTERVAL", time.Second),
			SigningKeyHex: getEnv("AGENT_SIGNING_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
