package config

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Executor  ExecutorConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	TasksPerMin int
}

// ExecutorConfig sizes the executor's event loop and the inbound limits of
// websocket sessions.
type ExecutorConfig struct {
	InboxSize    int
	SessionRate  float64 // requests per second
	SessionBurst int
}

// WorkerConfig configures the asynq server that drains queued tasks
type WorkerConfig struct {
	Concurrency int
	Queue       string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables, SERVER_PORT overrides server.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.tasks_per_min", 60)
	viper.SetDefault("executor.inbox_size", 256)
	viper.SetDefault("executor.session_rate", 50)
	viper.SetDefault("executor.session_burst", 100)
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.queue", "executor")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			TasksPerMin: viper.GetInt("ratelimit.tasks_per_min"),
		},
		Executor: ExecutorConfig{
			InboxSize:    viper.GetInt("executor.inbox_size"),
			SessionRate:  viper.GetFloat64("executor.session_rate"),
			SessionBurst: viper.GetInt("executor.session_burst"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
			Queue:       viper.GetString("worker.queue"),
		},
	}

	return cfg, nil
}

// NewLogger returns a JSON logger writing to out. Unknown levels fall back to
// info.
func NewLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
