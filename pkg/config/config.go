package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Export   ExportConfig   `mapstructure:"export"`
	Texts    TextsConfig    `mapstructure:"texts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	AskK    int           `mapstructure:"ask_k"`
	QuizNum int           `mapstructure:"quiz_num"`
}

type ProfileConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Name   string `mapstructure:"name"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type TextsConfig struct {
	Fallback    string `mapstructure:"fallback"`
	QuizFormat  string `mapstructure:"quiz_format"`
	TaskFormat  string `mapstructure:"task_format"`
	TitleLayout string `mapstructure:"title_layout"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".edu-assistant"
	}
	return filepath.Join(dir, "edu-assistant")
}

// LoadConfig reads path if it exists; a missing file leaves the defaults
// and environment in effect.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", time.Duration(0))
	v.SetDefault("backend.ask_k", 0)
	v.SetDefault("backend.quiz_num", 5)
	v.SetDefault("profile.driver", "sqlite")
	v.SetDefault("profile.path", filepath.Join(defaultStateDir(), "profile.db"))
	v.SetDefault("profile.name", "default")
	v.SetDefault("export.dir", ".")
	v.SetDefault("texts.fallback", "Sorry, something went wrong. Please try again.")
	v.SetDefault("texts.quiz_format", "Quiz on \"%s\":\n\n%s")
	v.SetDefault("texts.task_format", "Task on \"%s\":\n\n%s")
	v.SetDefault("texts.title_layout", "02.01.2006, 15:04:05")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "edu_assistant")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.2)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if backendURL := v.GetString("BACKEND_URL"); backendURL != "" {
		config.Backend.URL = backendURL
	}

	return &config, nil
}
