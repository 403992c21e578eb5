package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) setProductionSecrets() {
	s.T().Setenv("ALLOWED_ORIGINS", "https://portfolio.example.com, https://www.portfolio.example.com/")
	s.T().Setenv("EMAIL_USER", "owner@example.com")
	s.T().Setenv("EMAIL_PASS", "app-password")
	s.T().Setenv("GEMINI_API_KEY", "test-key")
}

func (s *ConfigSuite) TestDefaults() {
	s.setProductionSecrets()
	cfg := FromEnv()

	s.Equal(":8080", cfg.Addr)
	s.Equal(EnvProduction, cfg.Environment)
	s.False(cfg.IsDevelopment())
	s.True(cfg.ChatbotEnabled)
	s.True(cfg.MessagingEnabled)
	s.Equal(time.Hour, cfg.RateLimit.SweepInterval)
	s.Equal(25*time.Second, cfg.ChatTimeout)
	s.Equal(30*time.Second, cfg.ContactTimeout)
	s.Equal("owner@example.com", cfg.Email.From)
	s.Equal("owner@example.com", cfg.Email.To)
	s.Equal([]string{"https://portfolio.example.com", "https://www.portfolio.example.com"}, cfg.AllowedOrigins)
	s.NoError(cfg.Validate())
}

func (s *ConfigSuite) TestFeatureToggles() {
	s.setProductionSecrets()
	s.T().Setenv("CHATBOT_ENABLED", "disabled")
	s.T().Setenv("MESSAGING_ENABLED", "false")
	s.T().Setenv("GEMINI_API_KEY", "")
	s.T().Setenv("EMAIL_PASS", "")

	cfg := FromEnv()

	s.False(cfg.ChatbotEnabled)
	s.False(cfg.MessagingEnabled)
	s.NoError(cfg.Validate(), "secrets are only required for enabled features")
}

func (s *ConfigSuite) TestDevelopmentAddsLocalOrigins() {
	s.T().Setenv("APP_ENV", "Development")
	s.T().Setenv("ALLOWED_ORIGINS", "http://localhost:3000")

	cfg := FromEnv()

	s.True(cfg.IsDevelopment())
	s.Contains(cfg.AllowedOrigins, "http://127.0.0.1:5173")
	count := 0
	for _, o := range cfg.AllowedOrigins {
		if o == "http://localhost:3000" {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *ConfigSuite) TestValidateReportsProblems() {
	s.T().Setenv("APP_ENV", "staging")
	s.T().Setenv("CHAT_TIMEOUT", "soon")
	s.T().Setenv("TRUSTED_PROXIES", "not-a-cidr/8")
	s.T().Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()
	err := cfg.Validate()

	s.Require().Error(err)
	s.Contains(err.Error(), "APP_ENV")
	s.Contains(err.Error(), "CHAT_TIMEOUT")
	s.Contains(err.Error(), "trusted proxy")
	s.Contains(err.Error(), "GEMINI_API_KEY")
	s.Contains(err.Error(), "EMAIL_USER")
	s.Equal(25*time.Second, cfg.ChatTimeout)
	s.Equal(slog.LevelDebug, cfg.LogLevel)
}

func (s *ConfigSuite) TestLoadDotEnv() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, ".env")
	s.Require().NoError(os.WriteFile(path, []byte("FOLIO_DOTENV_PROBE=from-file\nADDR=:9999\n"), 0o600))
	s.T().Setenv("ADDR", ":7000")
	s.T().Cleanup(func() { _ = os.Unsetenv("FOLIO_DOTENV_PROBE") })

	s.Require().NoError(LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	s.Equal("from-file", os.Getenv("FOLIO_DOTENV_PROBE"))
	s.Equal(":7000", os.Getenv("ADDR"), "real environment wins over the file")
}
