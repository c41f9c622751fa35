package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MediaBackendDisk  = "disk"
	MediaBackendMinio = "minio"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port    string
	GinMode string

	MongoURI      string
	MongoDatabase string

	JWTSecret            string
	TokenTTL             time.Duration
	LoginRequireVerified bool

	EmailUser string
	EmailPass string
	EmailFrom string
	SMTPHost  string
	SMTPPort  string

	UploadDir      string
	MediaBackend   string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int
	OTPMaxAttempts     int

	CORSOrigins []string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env vars")
	}

	emailUser := getenv("EMAIL_USER", "")

	return &Config{
		Port:    getenv("PORT", "5000"),
		GinMode: getenv("GIN_MODE", "debug"),

		MongoURI:      getenv("MONGODB_URI", getenv("MONGO_URI", "")),
		MongoDatabase: getenv("MONGODB_DATABASE", "friendbook"),

		JWTSecret:            getenv("JWT_SECRET", ""),
		TokenTTL:             getDuration("TOKEN_TTL", 7*24*time.Hour),
		LoginRequireVerified: getBool("LOGIN_REQUIRE_VERIFIED", false),

		EmailUser: emailUser,
		EmailPass: getenv("EMAIL_PASS", ""),
		EmailFrom: getenv("EMAIL_FROM", emailUser),
		SMTPHost:  getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:  getenv("SMTP_PORT", "465"),

		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		MediaBackend:   strings.ToLower(getenv("MEDIA_BACKEND", MediaBackendDisk)),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "uploads"),
		MinioUseSSL:    getBool("MINIO_USE_SSL", false),

		RedisAddr:          getenv("REDIS_ADDR", ""),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),
		OTPMaxAttempts:     getInt("OTP_MAX_ATTEMPTS", 5),

		CORSOrigins: splitList(getenv("CORS_ORIGINS", "*")),
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.MediaBackend {
	case MediaBackendDisk, MediaBackendMinio:
	default:
		return errors.New("MEDIA_BACKEND must be disk or minio")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// AllowAllOrigins is true when CORS_ORIGINS is "*" or empty.
func (c *Config) AllowAllOrigins() bool {
	return len(c.CORSOrigins) == 0 || (len(c.CORSOrigins) == 1 && c.CORSOrigins[0] == "*")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
