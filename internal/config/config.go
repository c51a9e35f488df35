// Package config предоставляет структуры и функции для загрузки конфига сервиса
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
	Env             string          `yaml:"env" env:"ENV" env-default:"local"`
	Storage         Storage         `yaml:"storage"`
	RedisConnection RedisConnection `yaml:"redis_connection"`
	HTTPServer      HTTPServer      `yaml:"http_server"`
	JWTToken        JWTToken        `yaml:"jwttoken"`
	Reset           Reset           `yaml:"reset"`
	S3              S3              `yaml:"s3"`
	SMTP            SMTP            `yaml:"smtp"`
	RabbitMQ        RabbitMQ        `yaml:"rabbitmq"`
	Templates       Templates       `yaml:"templates"`
	CacheTTL        time.Duration   `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"10m"`
}

// Storage выбор и параметры хранилища пользователей
type Storage struct {
	Driver         string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	PostgresDSN    string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	MongoURI       string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase  string `yaml:"mongo_database" env:"MONGO_DATABASE" env-default:"storefront"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit запросов в секунду на публичные auth-маршруты, Burst задаёт размер всплеска
	RateLimit float64 `yaml:"rate_limit" env-default:"5"`
	Burst     int     `yaml:"burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном и cookie сессии
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"120h"`
	CookieSecure bool          `yaml:"cookie_secure" env:"COOKIE_SECURE"`
}

// Reset параметры сброса пароля
type Reset struct {
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"15m"`
	// PublicBaseURL переопределяет https://<host> из запроса в ссылке сброса
	PublicBaseURL string `yaml:"public_base_url" env:"RESET_PUBLIC_BASE_URL"`
}

// S3 параметры объектного хранилища для аватаров
type S3 struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region        string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET" env-default:"storefront"`
	AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// SMTP параметры почтового транспорта
type SMTP struct {
	Host string `yaml:"host" env:"SMTP_HOST"`
	Port string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User string `yaml:"user" env:"SMTP_USER"`
	Pass string `yaml:"pass" env:"SMTP_PASS"`
	From string `yaml:"from" env:"SMTP_FROM"`
}

// RabbitMQ параметры брокера уведомлений. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"storefront"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Workers    int           `yaml:"workers" env-default:"10"`
}

// Template шаблон письма: идентификатор, тема и тело в синтаксисе text/template
type Template struct {
	ID      string `yaml:"id"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Templates шаблоны писем по назначению
type Templates struct {
	Reset           Template `yaml:"reset"`
	Welcome         Template `yaml:"welcome"`
	PasswordChanged Template `yaml:"password_changed"`
}

// All возвращает все заданные шаблоны.
func (t Templates) All() []Template {
	res := make([]Template, 0, 3)
	for _, tpl := range []Template{t.Reset, t.Welcome, t.PasswordChanged} {
		if tpl.ID != "" {
			res = append(res, tpl)
		}
	}
	return res
}

// Load читает конфиг из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"S3:\n"+
			"  Endpoint: %s\n"+
			"  Bucket: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  Pass: %s\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n",
		c.Env,
		c.Storage.Driver,
		c.Storage.MigrationsPath,
		c.RedisConnection.AddressRedis,
		mask(c.RedisConnection.Password),
		c.HTTPServer.AddressHTTP,
		c.HTTPServer.TimeoutHTTP,
		c.HTTPServer.IdleTimeout,
		mask(c.JWTToken.JWTSecretKey),
		c.JWTToken.TokenTTL,
		c.S3.Endpoint,
		c.S3.Bucket,
		c.SMTP.Host,
		mask(c.SMTP.Pass),
		c.RabbitMQ.Exchange,
	)
}
