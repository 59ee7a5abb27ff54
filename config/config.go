package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	Discord struct {
		AppID     string `koanf:"app_id" yaml:"app_id"`
		BotToken  string `koanf:"bot_token" yaml:"bot_token"`
		GuildID   string `koanf:"guild_id" yaml:"guild_id"`
		ChannelID string `koanf:"channel_id" yaml:"channel_id"`
	} `koanf:"discord" yaml:"discord"`

	Members struct {
		// Path of the member snapshot on disk. Ignored when URL is set.
		Path string `koanf:"path" yaml:"path"`
		URL  string `koanf:"url" yaml:"url"`
	} `koanf:"members" yaml:"members"`

	Report struct {
		Cron                 string `koanf:"cron" yaml:"cron"`
		Timezone             string `koanf:"timezone" yaml:"timezone"`
		KickEnabled          bool   `koanf:"kick_enabled" yaml:"kick_enabled"`
		KickReason           string `koanf:"kick_reason" yaml:"kick_reason"`
		RemovalThresholdDays int    `koanf:"removal_threshold_days" yaml:"removal_threshold_days"`
		LeaderboardSize      int    `koanf:"leaderboard_size" yaml:"leaderboard_size"`
		IncludeOtherYears    bool   `koanf:"include_other_years" yaml:"include_other_years"`
	} `koanf:"report" yaml:"report"`

	Database struct {
		Directory string `koanf:"directory" yaml:"directory"`
	} `koanf:"database" yaml:"database"`

	Log struct {
		Level string `koanf:"level" yaml:"level"`
	} `koanf:"log" yaml:"log"`
}

// Global singleton config instance
var (
	cfg  *AppConfig
	once sync.Once
)

// Get returns the global AppConfig instance
func Get() *AppConfig {
	once.Do(func() {
		var err error
		cfg, err = Load(DefaultLocations())
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
	})
	return cfg
}

// DefaultLocations are the config file paths tried in order.
func DefaultLocations() []string {
	return []string{
		"/etc/app/config.yaml",            // Standard system location
		"/config/config.yaml",             // Docker mounted volume location
		filepath.Join(".", "config.yaml"), // Local file in current directory
	}
}

// defaults are the lowest priority layer.
var defaults = map[string]interface{}{
	"discord.app_id":                "1349959098543767602",
	"members.path":                  "./members.json",
	"report.cron":                   "0 21 * * *",
	"report.timezone":               "Asia/Kolkata",
	"report.kick_enabled":           false,
	"report.kick_reason":            "No status update for too long",
	"report.removal_threshold_days": 3,
	"report.leaderboard_size":       5,
	"report.include_other_years":    false,
	"database.directory":            "./dbfiles",
	"log.level":                     "debug",
}

// Load reads configuration from the defaults, the first config file found in
// locations, a .env file and APP_ environment variables, in rising priority.
func Load(locations []string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	configLoaded := false
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			slog.Info("loading configuration file", "path", loc)
			if err := k.Load(file.Provider(loc), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config file %s: %w", loc, err)
			}
			configLoaded = true
			break
		}
	}

	if !configLoaded {
		slog.Warn("no config file found in any of the expected locations",
			"searched_locations", locations)
	}

	// A .env file only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Environment variables (highest priority)
	// Format: APP_DISCORD__BOT_TOKEN -> discord.bot_token
	if err := k.Load(env.Provider("APP_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg AppConfig
	decoderConfig := koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}

	if err := k.UnmarshalWithConf("", &cfg, decoderConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	slog.Debug("configuration loaded",
		"database_directory", cfg.Database.Directory,
		"discord_app_id", cfg.Discord.AppID,
		"guild_id", cfg.Discord.GuildID,
		"channel_id", cfg.Discord.ChannelID,
		"bot_token_present", cfg.Discord.BotToken != "",
		"members_path", cfg.Members.Path,
		"members_url_present", cfg.Members.URL != "",
		"report_cron", cfg.Report.Cron,
		"kick_enabled", cfg.Report.KickEnabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps APP_REPORT__KICK_ENABLED to report.kick_enabled. Sections are
// separated by a double underscore since keys contain single underscores.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "APP_"))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the settings the bot cannot start without.
func (c *AppConfig) Validate() error {
	if c.Discord.BotToken == "" {
		return errors.New("discord.bot_token is required")
	}
	if c.Discord.GuildID == "" {
		return errors.New("discord.guild_id is required")
	}
	if c.Members.Path == "" && c.Members.URL == "" {
		return errors.New("one of members.path or members.url is required")
	}
	if c.Report.Cron == "" {
		return errors.New("report.cron is required")
	}
	return nil
}
