// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	Storage         `yaml:"storage"`
	Gateway         `yaml:"gateway"`
	Order           `yaml:"order"`
	Sweep           `yaml:"sweep"`
	Provisioner     `yaml:"provisioner"`
	ServerInfo      `yaml:"server_info"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	SMTP            `yaml:"smtp"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
}

// Storage структура для выбора и настройки хранилища документа
type Storage struct {
	// Driver одно из: file, postgres, sqlite
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	Path       string `yaml:"path" env:"STORAGE_PATH" env-default:"./DB.json"`
	DSN        string `yaml:"dsn" env:"STORAGE_DSN"`
	MaxRetries int    `yaml:"max_retries" env-default:"5"`
}

// Gateway структура для настройки клиента платежного шлюза
type Gateway struct {
	Mode            string        `yaml:"mode" env:"PAYPAL_MODE" env-default:"sandbox"`
	BaseURL         string        `yaml:"base_url" env:"PAYPAL_BASE_URL"`
	ClientID        string        `yaml:"client_id" env:"PAYPAL_CLIENT_ID"`
	ClientSecret    string        `yaml:"client_secret" env:"PAYPAL_CLIENT_SECRET"`
	Currency        string        `yaml:"currency" env-default:"EUR"`
	TimeoutGateway  time.Duration `yaml:"timeout" env-default:"10s"`
	BreakerFailures uint32        `yaml:"breaker_failures" env-default:"5"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" env-default:"30s"`
}

// Order структура для настройки сервиса заказов
type Order struct {
	DedupeTTL time.Duration `yaml:"dedupe_ttl" env-default:"2m"`
	LockTTL   time.Duration `yaml:"lock_ttl" env-default:"30s"`
}

// Sweep структура для настройки периодической очистки истекших доступов
type Sweep struct {
	Interval      time.Duration `yaml:"interval" env-default:"1h"`
	FirstRunDelay time.Duration `yaml:"first_run_delay" env-default:"10s"`
	LockTTL       time.Duration `yaml:"lock_ttl" env-default:"5m"`
}

// Provisioner структура для настройки отзыва ssh-доступа на хосте
type Provisioner struct {
	HomeRoot    string `yaml:"home_root" env-default:"/home"`
	ArchiveRoot string `yaml:"archive_root" env:"ARCHIVE_ROOT" env-default:"/home/admin/expiredusers"`
	UsermodPath string `yaml:"usermod_path" env-default:"/usr/sbin/usermod"`
	UseSudo     bool   `yaml:"use_sudo"`
}

// ServerInfo структура с данными для подключения, которые отдаются пользователю
type ServerInfo struct {
	SSHHost string `yaml:"ssh_host" env:"SSH_HOST"`
	SSHPort int    `yaml:"ssh_port" env-default:"33"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RabbitMQ структура для настройки подключения к брокеру событий
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP структура для настройки отправки писем администратору
type SMTP struct {
	SMTPHost   string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort   string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser   string `yaml:"user" env:"SMTP_USER"`
	SMTPPass   string `yaml:"pass" env:"SMTP_PASS"`
	AdminEmail string `yaml:"admin_email" env:"ADMIN_EMAIL"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeout" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// Load читает конфиг из файла по пути path, переменные окружения переопределяют значения из файла.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for file driver")
		}
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Gateway.Mode {
	case "sandbox", "live":
	default:
		return fmt.Errorf("unknown gateway mode %q", c.Gateway.Mode)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  Path: %s\n"+
			"Gateway:\n"+
			"  Mode: %s\n"+
			"  ClientID: %s\n"+
			"  ClientSecret: %s\n"+
			"Sweep:\n"+
			"  Interval: %s\n"+
			"  FirstRunDelay: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"RabbitMQ:\n"+
			"  URL set: %t\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n",
		c.Env,
		c.Storage.Driver,
		c.Storage.Path,
		c.Gateway.Mode,
		c.Gateway.ClientID,
		mask(c.Gateway.ClientSecret),
		c.Sweep.Interval,
		c.Sweep.FirstRunDelay,
		c.RedisConnection.Addr,
		c.RabbitMQURL != "",
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		mask(c.JWTSecretKey),
		c.TokenTTL,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
