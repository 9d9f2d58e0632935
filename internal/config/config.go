package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from YAML with environment
// variable overrides on top.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Rooms struct {
		EmptyRoomGraceSec int `yaml:"empty_room_grace_sec"`
		EndedRoomGraceSec int `yaml:"ended_room_grace_sec"`
		ReapIntervalSec   int `yaml:"reap_interval_sec"`
		Defaults          struct {
			MaxPlayers         int `yaml:"max_players"`
			TimePerTurnSec     int `yaml:"time_per_turn_sec"`
			TimePerQuestionSec int `yaml:"time_per_question_sec"`
		} `yaml:"defaults"`
	} `yaml:"rooms"`

	Questions struct {
		Dir string `yaml:"dir"`
	} `yaml:"questions"`

	Database DatabaseConfig `yaml:"database"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Load reads a YAML config file (if the path exists) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Rooms.EmptyRoomGraceSec = 120
	cfg.Rooms.EndedRoomGraceSec = 60
	cfg.Rooms.ReapIntervalSec = 30
	cfg.Rooms.Defaults.MaxPlayers = 8
	cfg.Rooms.Defaults.TimePerTurnSec = 30
	cfg.Rooms.Defaults.TimePerQuestionSec = 20
	cfg.Questions.Dir = "assets/quizzes"
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "braina",
		SSLMode:  "disable",
	}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Stream = "GAME_RESULTS"
	cfg.NATS.SubjectPrefix = "games.results"
	return cfg
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Questions.Dir = getEnv("QUESTIONS_DIR", c.Questions.Dir)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	if os.Getenv("DB_ENABLED") != "" {
		c.Database.Enabled = os.Getenv("DB_ENABLED") == "true"
	}

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	if os.Getenv("NATS_ENABLED") != "" {
		c.NATS.Enabled = os.Getenv("NATS_ENABLED") == "true"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
