package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken string
	DatabasePath  string
	// Timezone is the fallback for users who never ran /settz.
	Timezone   *time.Location
	WebhookURL string // empty means long polling
	ServerPort string
	LogLevel   string
	LogFile    string
}

// Load reads config.yaml (working dir or ./configs) and the REMINDBOT_*
// environment, env winning.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("remindbot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", "./data/remindbot.db")
	v.SetDefault("timezone", "Europe/Moscow")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	token := v.GetString("telegram.token")
	if token == "" {
		return nil, fmt.Errorf("telegram.token (REMINDBOT_TELEGRAM_TOKEN) is required")
	}

	tzName := v.GetString("timezone")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tzName, err)
	}

	return &Config{
		TelegramToken: token,
		DatabasePath:  v.GetString("database.path"),
		Timezone:      tz,
		WebhookURL:    v.GetString("webhook.url"),
		ServerPort:    v.GetString("server.port"),
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
	}, nil
}
