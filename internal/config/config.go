package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

var ErrUnknownSessionStore = errors.New("unknown session store")

var newSecret = pkg.GenerateNewSessionID

type Config struct {
	LogLevel   string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string    `yaml:"socket-port" env:"SOCKET_PORT" env-default:"7000"`
	Session    Session   `yaml:"session"`
	Redis      Redis     `yaml:"redis"`
	Websocket  Websocket `yaml:"websocket"`
}

type Session struct {
	Secret     string        `yaml:"secret" env:"SESSION_SECRET"`
	TTL        time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"720h"`
	CookieName string        `yaml:"cookie-name" env:"SESSION_COOKIE_NAME" env-default:"user_session"`
	Store      string        `yaml:"store" env:"SESSION_STORE" env-default:"memory"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Websocket struct {
	WriteWait      time.Duration `yaml:"write-wait" env:"WS_WRITE_WAIT" env-default:"10s"`
	PongWait       time.Duration `yaml:"pong-wait" env:"WS_PONG_WAIT" env-default:"60s"`
	MaxMessageSize int64         `yaml:"max-message-size" env:"WS_MAX_MESSAGE_SIZE" env-default:"4096"`
	SendBuffer     int           `yaml:"send-buffer" env:"WS_SEND_BUFFER" env-default:"64"`
}

// MustLoad - load all configurations from the config file, or the environment when it is absent.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		err = cleanenv.ReadConfig(path, config)
	case errors.Is(err, fs.ErrNotExist):
		err = cleanenv.ReadEnv(config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if config.Session.Store != StoreMemory && config.Session.Store != StoreRedis {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSessionStore, config.Session.Store)
	}

	// cookies signed with a generated secret do not survive a restart, neither do memory sessions
	if config.Session.Secret == "" {
		if config.Session.Secret, err = newSecret(); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
