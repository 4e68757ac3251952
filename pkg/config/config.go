package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Yandex    YandexConfig    `mapstructure:"yandex"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type TelegramConfig struct {
	Token           string        `mapstructure:"token"`
	ThrottlePeriod  time.Duration `mapstructure:"throttle_period"`
	ThrottleMaxRate int           `mapstructure:"throttle_max_rate"`
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

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	UseRedis   bool          `mapstructure:"use_redis"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type OpenAIConfig struct {
	APIKey                  string        `mapstructure:"api_key"`
	RegistrationAssistantID string        `mapstructure:"registration_assistant_id"`
	SurveyAssistantID       string        `mapstructure:"survey_assistant_id"`
	PollInterval            time.Duration `mapstructure:"poll_interval"`
	PollTimeout             time.Duration `mapstructure:"poll_timeout"`
}

type YandexConfig struct {
	OAuthToken   string        `mapstructure:"oauth_token"`
	FolderID     string        `mapstructure:"folder_id"`
	TokenRefresh time.Duration `mapstructure:"token_refresh"`
}

type SchedulerConfig struct {
	Timezone string `mapstructure:"timezone"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("telegram.throttle_period", 10*time.Second)
	v.SetDefault("telegram.throttle_max_rate", 5)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.use_redis", false)
	v.SetDefault("redis.session_ttl", 24*time.Hour)
	v.SetDefault("openai.poll_interval", time.Second)
	v.SetDefault("openai.poll_timeout", 90*time.Second)
	v.SetDefault("yandex.token_refresh", time.Hour)
	v.SetDefault("scheduler.timezone", "Asia/Almaty")

	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if id := v.GetString("REGISTRATION_ASSISTANT_ID"); id != "" {
		config.OpenAI.RegistrationAssistantID = id
	}
	if id := v.GetString("SURVEY_ASSISTANT_ID"); id != "" {
		config.OpenAI.SurveyAssistantID = id
	}
	if token := v.GetString("YANDEX_OAUTH_TOKEN"); token != "" {
		config.Yandex.OAuthToken = token
	}
	if folder := v.GetString("YANDEX_FOLDER_ID"); folder != "" {
		config.Yandex.FolderID = folder
	}
	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		config.Redis.Addr = strings.TrimPrefix(redisURL, "redis://")
		config.Redis.UseRedis = true
	}

	return &config, nil
}
