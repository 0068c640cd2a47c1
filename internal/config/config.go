package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	// ConfigSecret is the key material used to decrypt at-rest-encrypted
	// gateway settings. Empty means encrypted settings cannot be read.
	ConfigSecret string

	FlexEnable          bool
	FlexAPIBaseURL      string
	FlexAPIKeyEncrypted string
	FlexTestMode        bool

	WebhookSecretEncrypted  string
	WebhookSignatureHeader  string
	WebhookToleranceSeconds int

	MobileSecretEncrypted string
	AllowMobileCORS       bool
	AutoPostRefunds       bool

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "flex-payments"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),

		ConfigSecret: strings.TrimSpace(getenv("FLEX_CONFIG_SECRET", "")),

		FlexEnable:          getenvBool("FLEX_ENABLE", false),
		FlexAPIBaseURL:      strings.TrimRight(getenv("FLEX_API_BASE_URL", "https://api.withflex.com"), "/"),
		FlexAPIKeyEncrypted: strings.TrimSpace(getenv("FLEX_API_KEY_ENCRYPTED", "")),
		FlexTestMode:        getenvBool("FLEX_TEST_MODE", false),

		WebhookSecretEncrypted:  strings.TrimSpace(getenv("FLEX_WEBHOOK_SECRET_ENCRYPTED", "")),
		WebhookSignatureHeader:  getenv("FLEX_WEBHOOK_SIGNATURE_HEADER", "Flex-Signature"),
		WebhookToleranceSeconds: getenvInt("FLEX_WEBHOOK_TOLERANCE_SECONDS", 300),

		MobileSecretEncrypted: strings.TrimSpace(getenv("FLEX_MOBILE_HMAC_SECRET_ENCRYPTED", "")),
		AllowMobileCORS:       getenvBool("FLEX_ALLOW_MOBILE_CORS", false),
		AutoPostRefunds:       getenvBool("FLEX_AUTO_POST_REFUNDS", false),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "openemr"),
		DBUser:            getenv("DATABASE_USER", "openemr"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
