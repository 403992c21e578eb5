package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"folio/pkg/platform/middleware/metadata"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DevelopmentOrigins are allowed in addition to ALLOWED_ORIGINS in development mode.
var DevelopmentOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5000",
	"http://127.0.0.1:5173",
}

// Server captures process level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	ChatbotEnabled   bool
	MessagingEnabled bool

	AllowedOrigins []string
	TrustedProxies []netip.Prefix

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Instance  InstanceLimit
	Email     EmailConfig
	Owner     OwnerConfig
	Gemini    GeminiConfig

	ChatTimeout    time.Duration
	ContactTimeout time.Duration

	problems []string
}

// RedisConfig configures the optional shared rate-limit store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig tunes the limiter's background work.
type RateLimitConfig struct {
	SweepInterval       time.Duration
	SuspiciousThreshold int
}

// InstanceLimit caps total throughput of one process. RPS <= 0 disables it.
type InstanceLimit struct {
	RPS   float64
	Burst int
}

// EmailConfig configures the SMTP transport.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// OwnerConfig describes the site owner shown in emails and the assistant persona.
type OwnerConfig struct {
	Name    string
	SiteURL string
}

// GeminiConfig configures the generative-AI upstream.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	PersonaURL string
}

// IsDevelopment reports whether development relaxations apply.
func (s Server) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// LoadDotEnv loads variables from the given files without overriding the
// real environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed values fall back to defaults and are reported by Validate.
func FromEnv() Server {
	p := &parser{}
	cfg := Server{
		Addr:            p.str("ADDR", ":8080"),
		Environment:     strings.ToLower(p.str("APP_ENV", EnvProduction)),
		LogLevel:        p.level("LOG_LEVEL", slog.LevelInfo),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		ChatbotEnabled:   p.toggle("CHATBOT_ENABLED", true),
		MessagingEnabled: p.toggle("MESSAGING_ENABLED", true),

		AllowedOrigins: p.list("ALLOWED_ORIGINS"),

		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			SweepInterval:       p.duration("RATE_LIMIT_SWEEP_INTERVAL", time.Hour),
			SuspiciousThreshold: p.integer("SUSPICIOUS_THRESHOLD", 5),
		},
		Instance: InstanceLimit{
			RPS:   p.float("INSTANCE_RPS", 50),
			Burst: p.integer("INSTANCE_BURST", 100),
		},
		Email: EmailConfig{
			Host:     p.str("EMAIL_HOST", "smtp.gmail.com"),
			Port:     p.integer("EMAIL_PORT", 587),
			User:     p.str("EMAIL_USER", ""),
			Password: p.str("EMAIL_PASS", ""),
			From:     p.str("EMAIL_FROM", ""),
			To:       p.str("EMAIL_TO", ""),
		},
		Owner: OwnerConfig{
			Name:    p.str("OWNER_NAME", "the site owner"),
			SiteURL: p.str("SITE_URL", ""),
		},
		Gemini: GeminiConfig{
			APIKey:     p.str("GEMINI_API_KEY", ""),
			Model:      p.str("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL:    strings.TrimRight(p.str("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
			PersonaURL: p.str("PERSONA_URL", ""),
		},
		ChatTimeout:    p.duration("CHAT_TIMEOUT", 25*time.Second),
		ContactTimeout: p.duration("CONTACT_TIMEOUT", 30*time.Second),
	}

	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.User
	}
	if cfg.Email.To == "" {
		cfg.Email.To = cfg.Email.User
	}
	if cfg.IsDevelopment() {
		cfg.AllowedOrigins = appendMissing(cfg.AllowedOrigins, DevelopmentOrigins...)
	}

	proxies, err := metadata.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		p.problems = append(p.problems, err.Error())
	}
	cfg.TrustedProxies = proxies

	cfg.problems = p.problems
	return cfg
}

// Validate reports malformed values and secrets missing for enabled features.
func (s Server) Validate() error {
	problems := append([]string(nil), s.problems...)

	if s.Environment != EnvDevelopment && s.Environment != EnvProduction {
		problems = append(problems, fmt.Sprintf("APP_ENV must be %q or %q", EnvDevelopment, EnvProduction))
	}
	if !s.IsDevelopment() && len(s.AllowedOrigins) == 0 {
		problems = append(problems, "ALLOWED_ORIGINS is required in production")
	}
	if s.MessagingEnabled {
		if s.Email.User == "" {
			problems = append(problems, "EMAIL_USER is required when messaging is enabled")
		}
		if s.Email.Password == "" {
			problems = append(problems, "EMAIL_PASS is required when messaging is enabled")
		}
	}
	if s.ChatbotEnabled && s.Gemini.APIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is required when the chatbot is enabled")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

type parser struct {
	problems []string
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: %q is not a number", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		p.problems = append(p.problems, fmt.Sprintf("%s: %q is not a positive duration", key, raw))
		return def
	}
	return v
}

// toggle accepts "enabled"/"disabled" as well as boolean spellings.
func (p *parser) toggle(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return def
	case "enabled", "on":
		return true
	case "disabled", "off":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: %q is not a toggle", key, raw))
		return def
	}
	return v
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: %q is not a log level", key, raw))
		return def
	}
	return lvl
}

func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimRight(strings.TrimSpace(item), "/"); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func appendMissing(list []string, items ...string) []string {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	for _, v := range items {
		if _, ok := seen[v]; !ok {
			list = append(list, v)
			seen[v] = struct{}{}
		}
	}
	return list
}
