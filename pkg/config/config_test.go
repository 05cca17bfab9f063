package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout)
	assert.Equal(t, 5, cfg.Backend.QuizNum)
	assert.Equal(t, "sqlite", cfg.Profile.Driver)
	assert.Equal(t, "default", cfg.Profile.Name)
	assert.Equal(t, "Sorry, something went wrong. Please try again.", cfg.Texts.Fallback)
	assert.Equal(t, "02.01.2006, 15:04:05", cfg.Texts.TitleLayout)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
backend:
  url: http://backend:9000
  timeout: 30s
  ask_k: 3
profile:
  driver: bolt
  name: work
texts:
  fallback: "Try again later."
database:
  use_in_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 3, cfg.Backend.AskK)
	assert.Equal(t, "bolt", cfg.Profile.Driver)
	assert.Equal(t, "work", cfg.Profile.Name)
	assert.Equal(t, "Try again later.", cfg.Texts.Fallback)
	assert.Equal(t, "Task on \"%s\":\n\n%s", cfg.Texts.TaskFormat)
	assert.True(t, cfg.Database.UseInMemory)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BACKEND_URL", "http://env-backend")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:6543/study?sslmode=require")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "http://env-backend", cfg.Backend.URL)
	assert.Equal(t, DatabaseConfig{
		Host:     "db",
		Port:     6543,
		User:     "app",
		Password: "secret",
		DBName:   "study",
		SSLMode:  "require",
	}, cfg.Database)
}

func TestParseDatabaseURL_DefaultPort(t *testing.T) {
	db, err := parseDatabaseURL("postgres://app@localhost/study")
	require.NoError(t, err)
	assert.Equal(t, 5432, db.Port)
	assert.Equal(t, "disable", db.SSLMode)
	assert.Empty(t, db.Password)
}
