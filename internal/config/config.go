package config

import (
	"os"
	"strconv"
)

// Config holds all process configuration, read once at boot.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Crypto    CryptoConfig
	Providers ProvidersConfig
	OAuth     OAuthConfig
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrationsPath string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	LogLevel     string
}

type AuthConfig struct {
	APIKeyHeader string
	OIDCIssuer   string
	OIDCAudience string
}

type RedisConfig struct {
	URL string // empty disables the distributed ingestion lock
}

type CryptoConfig struct {
	// EncryptionKey is the process-wide AES-256 key (32 bytes, base64
	// encoded) used to encrypt connector/provider credential blobs.
	EncryptionKey string
}

// OAuthConfig carries the redirect base URL OAuth authorization-code
// flows return to; the per-app client id/secret live in persisted
// models.OAuthProvider records instead of env vars.
type OAuthConfig struct {
	RedirectBaseURL string
	SlackScopes     string
}

// ProvidersConfig carries the raw environment-variable surface C1 reads
// to decide ActiveProvider(). See spec §6's environment-variable table.
type ProvidersConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	OllamaModel string
	OllamaHost  string

	TogetherAPIKey string
	TogetherModel  string

	FireworksAPIKey string
	FireworksModel  string

	GeminiAPIKey string
	GeminiModel  string

	VertexProjectID string
	VertexRegion    string
	VertexProvider  string // ANTHROPIC | GOOGLE
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("PORT", 8080),
		Version: envStr("VERSION", "0.1.0"),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
			MigrationsPath: envStr("DATABASE_MIGRATIONS_PATH", "internal/store/migrations"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "assistant-core"),
			LogLevel:     envStr("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			APIKeyHeader: envStr("AUTH_API_KEY_HEADER", "Authorization"),
			OIDCIssuer:   envStr("AUTH_OIDC_ISSUER", ""),
			OIDCAudience: envStr("AUTH_OIDC_AUDIENCE", ""),
		},
		Redis: RedisConfig{
			URL: envStr("REDIS_URL", ""),
		},
		Crypto: CryptoConfig{
			EncryptionKey: envStr("ENCRYPTION_KEY", ""),
		},
		OAuth: OAuthConfig{
			RedirectBaseURL: envStr("OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
			SlackScopes:     envStr("SLACK_OAUTH_SCOPES", "channels:history,channels:read,users:read"),
		},
		Providers: ProvidersConfig{
			AWSRegion:          envStr("AWS_REGION", ""),
			AWSAccessKeyID:     envStr("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey: envStr("AWS_SECRET_ACCESS_KEY", ""),
			AWSSessionToken:    envStr("AWS_SESSION_TOKEN", ""),
			OpenAIAPIKey:       envStr("OPENAI_API_KEY", ""),
			OpenAIBaseURL:      envStr("OPENAI_BASE_URL", ""),
			OllamaModel:        envStr("OLLAMA_MODEL", ""),
			OllamaHost:         envStr("OLLAMA_HOST", "http://localhost:11434"),
			TogetherAPIKey:     envStr("TOGETHER_API_KEY", ""),
			TogetherModel:      envStr("TOGETHER_MODEL", ""),
			FireworksAPIKey:    envStr("FIREWORKS_API_KEY", ""),
			FireworksModel:     envStr("FIREWORKS_MODEL", ""),
			GeminiAPIKey:       envStr("GEMINI_API_KEY", ""),
			GeminiModel:        envStr("GEMINI_MODEL", ""),
			VertexProjectID:    envStr("VERTEX_PROJECT_ID", ""),
			VertexRegion:       envStr("VERTEX_REGION", ""),
			VertexProvider:     envStr("VERTEX_PROVIDER", "ANTHROPIC"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
