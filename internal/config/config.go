package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration. It is built once at startup
// and passed to components explicitly; nothing reads configuration globally
// after boot.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Slack      SlackConfig      `mapstructure:"slack"`
	Workflows  WorkflowsConfig  `mapstructure:"workflows"`
	Home       HomeConfig       `mapstructure:"home"`
	Background BackgroundConfig `mapstructure:"background"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// SlackConfig holds Slack credentials and the approver allow-list.
type SlackConfig struct {
	BotToken        string   `mapstructure:"bot_token"`
	SigningSecret   string   `mapstructure:"signing_secret"`
	ApproverUserIDs []string `mapstructure:"approver_user_ids"`
}

// WorkflowsConfig locates the workflow definition files.
type WorkflowsConfig struct {
	Dir string `mapstructure:"dir"`
}

// HomeConfig tunes the App Home surface.
type HomeConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
}

// BackgroundConfig sizes the notification worker pool.
type BackgroundConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from the YAML file, a .env file when present, and
// environment variables (SLACK_BOT_TOKEN and friends override the file).
func Load(configPath string) (*Config, error) {
	_ = gotenv.Load()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if ids := viper.GetString("slack.approver_user_ids"); len(cfg.Slack.ApproverUserIDs) == 0 && ids != "" {
		cfg.Slack.ApproverUserIDs = splitIDs(ids)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/workflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("workflows.dir", "configs/workflows")

	viper.SetDefault("home.page_size", 10)
	viper.SetDefault("home.debounce_window", 5*time.Second)

	viper.SetDefault("background.workers", 4)
	viper.SetDefault("background.queue_size", 64)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	_ = viper.BindEnv("slack.bot_token", "SLACK_BOT_TOKEN")
	_ = viper.BindEnv("slack.signing_secret", "SLACK_SIGNING_SECRET")
	_ = viper.BindEnv("slack.approver_user_ids", "APPROVER_USER_IDS")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token (SLACK_BOT_TOKEN)")
	}
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "slack.signing_secret (SLACK_SIGNING_SECRET)")
	}
	if len(c.Slack.ApproverUserIDs) == 0 {
		missing = append(missing, "slack.approver_user_ids (APPROVER_USER_IDS)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// IsApprover reports whether user is in the global approver allow-list.
func (c *SlackConfig) IsApprover(user string) bool {
	for _, id := range c.ApproverUserIDs {
		if id == user {
			return true
		}
	}
	return false
}
