package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSetting marks a required setting that is absent or unusable.
var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	Port           string
	AppEnv         string
	LogLevel       string
	LogFormat      string
	MetricsNS      string
	TrustedProxies []string
	AdminToken     string

	// Webhook security
	AppSecret   string
	VerifyToken string
	WASalt      string

	// Outbound Graph API
	WhatsAppToken    string
	PhoneNumberID    string
	WhatsAppVersion  string
	WhatsAppBaseURL  string
	IntroSendTimeout time.Duration

	// Database
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Rate limiting
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ThrottleIP     string
	ThrottleWaHash string
	MaxBodyBytes   int64
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		MetricsNS:      getEnv("METRICS_NAMESPACE", "dilli"),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		AdminToken:     getEnv("ADMIN_API_TOKEN", ""),

		AppSecret:   getEnv("META_APP_SECRET", ""),
		VerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WASalt:      getEnv("WA_SALT", ""),

		WhatsAppToken:    getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		PhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVersion:  getEnv("WHATSAPP_API_VERSION", "v20.0"),
		WhatsAppBaseURL:  getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
		IntroSendTimeout: getDuration("INTRO_SEND_TIMEOUT", 10*time.Second),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./dilli.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "dilli"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getInt("REDIS_DB", 0),
		ThrottleIP:     getEnv("THROTTLE_RATE_IP", "120/min"),
		ThrottleWaHash: getEnv("THROTTLE_RATE_WA_HASH", "60/min"),
		MaxBodyBytes:   int64(getInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
	}
}

// Validate reports every setting the webhook cannot run without. Secrets are
// checked here so a misconfigured deployment fails at startup rather than on
// its first request.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"META_APP_SECRET", c.AppSecret},
		{"WHATSAPP_VERIFY_TOKEN", c.VerifyToken},
		{"WA_SALT", c.WASalt},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, r.key))
		}
	}

	if _, err := ParseRate(c.ThrottleIP); err != nil {
		errs = append(errs, fmt.Errorf("%w: THROTTLE_RATE_IP: %v", ErrMissingSetting, err))
	}
	if _, err := ParseRate(c.ThrottleWaHash); err != nil {
		errs = append(errs, fmt.Errorf("%w: THROTTLE_RATE_WA_HASH: %v", ErrMissingSetting, err))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: WEBHOOK_MAX_BODY_BYTES must be positive", ErrMissingSetting))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("%w: DB_DRIVER %q is not sqlite or postgres", ErrMissingSetting, c.DBDriver))
	}

	return errors.Join(errs...)
}

// Rate is a request budget per fixed window.
type Rate struct {
	Limit  int
	Window time.Duration
}

// ParseRate reads rates written as "<n>/<period>", e.g. "120/min".
func ParseRate(s string) (Rate, error) {
	num, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("rate %q must look like <n>/<period>", s)
	}
	limit, err := strconv.Atoi(num)
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("rate %q has an invalid request count", s)
	}

	var window time.Duration
	switch strings.ToLower(period) {
	case "s", "sec", "second":
		window = time.Second
	case "m", "min", "minute":
		window = time.Minute
	case "h", "hour":
		window = time.Hour
	case "d", "day":
		window = 24 * time.Hour
	default:
		return Rate{}, fmt.Errorf("rate %q has an unknown period", s)
	}
	return Rate{Limit: limit, Window: window}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, raw, fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
