package infra

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// minSecretBytes — минимальная длина ключа HMAC (256 бит).
const minSecretBytes = 32

// minTokenLifetimeMs — минимальный срок жизни токена (1 секунда).
const minTokenLifetimeMs = 1000

// Config — корневая структура конфигурации сервиса аутентификации.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DatabaseConfig описывает хранилище пользователей: postgres или mongo.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Name     string `mapstructure:"name"` // Имя базы (только для mongo)
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (ротация refresh-токенов).
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит общий секрет и времена жизни токенов.
// Секрет загружается один раз; его смена инвалидирует все выданные токены.
type AuthConfig struct {
	Secret                 string `mapstructure:"secret"` // base64url
	AccessTokenLifetimeMs  int64  `mapstructure:"access_token_lifetime_ms"`
	RefreshTokenLifetimeMs int64  `mapstructure:"refresh_token_lifetime_ms"`
	BcryptCost             int    `mapstructure:"bcrypt_cost"`
	RotateRefreshTokens    bool   `mapstructure:"rotate_refresh_tokens"`
	LoginRatePerMinute     int    `mapstructure:"login_rate_per_minute"`
	LoginBurst             int    `mapstructure:"login_burst"`

	SecretKey []byte `mapstructure:"-"`
}

func (a AuthConfig) AccessTokenLifetime() time.Duration {
	return time.Duration(a.AccessTokenLifetimeMs) * time.Millisecond
}

func (a AuthConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(a.RefreshTokenLifetimeMs) * time.Millisecond
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuditConfig настраивает буфер асинхронного аудита.
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoadConfig инициализирует конфигурацию, объединяя .env, файл и ENV.
func LoadConfig() (*Config, error) {
	// .env опционален: в Docker/K8s переменные приходят напрямую
	_ = godotenv.Load()

	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// 2. Переменные окружения: AUTH_SECRET перекроет auth.secret
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Секрет и времена жизни проверяем сразу: без них сервис не стартует
	key, err := DecodeSecret(cfg.Auth.Secret)
	if err != nil {
		return nil, err
	}
	cfg.Auth.SecretKey = key

	// Claims exp/iat хранятся в секундах: срок короче секунды истекает в момент выпуска
	if cfg.Auth.AccessTokenLifetimeMs < minTokenLifetimeMs || cfg.Auth.RefreshTokenLifetimeMs < minTokenLifetimeMs {
		return nil, fmt.Errorf("auth: token lifetimes must be at least %d ms", minTokenLifetimeMs)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 50052)
	// Пустые дефолты нужны, чтобы AutomaticEnv подхватил ключи при Unmarshal
	v.SetDefault("auth.secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.name", "reflections")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.access_token_lifetime_ms", 15*60*1000)
	v.SetDefault("auth.refresh_token_lifetime_ms", 7*24*60*60*1000)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.rotate_refresh_tokens", true)
	v.SetDefault("auth.login_rate_per_minute", 20)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 1*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("metrics.port", 9090)
}

// DecodeSecret декодирует base64url секрет (паддинг опционален) и проверяет его длину.
func DecodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("auth: secret is empty")
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(secret, "="))
	if err != nil {
		return nil, fmt.Errorf("auth: secret is not valid base64url: %w", err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("auth: secret must be at least %d bytes, got %d", minSecretBytes, len(key))
	}
	return key, nil
}
