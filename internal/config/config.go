package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"polytrader/pkg/crypto"
)

// Config содержит всю конфигурацию приложения.
//
// Здесь только инфраструктурные параметры, которые читаются один раз
// на старте. Торговые параметры (лимиты риска, пороги брейкеров)
// живут в БД и меняются на лету через ConfigService.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Security SecurityConfig
	Bot      BotConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig - адреса внешних API и креды площадки.
// Пустые креды переводят исполнение в симуляцию.
type ExchangeConfig struct {
	CLOBBaseURL  string
	GammaBaseURL string
	SpotPriceURL string

	Address    string
	APIKey     string
	Secret     string
	Passphrase string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// bcrypt-хеш admin-токена. Пустой хеш отключает проверку
	// (только для локальной разработки).
	AdminTokenHash string

	// AES-256 ключ для расшифровки CLOB_SECRET_ENCRYPTED
	EncryptionKey string
}

// BotConfig - интервалы фоновых циклов
type BotConfig struct {
	WorkerInterval    time.Duration // торговый цикл
	ReconInterval     time.Duration // сверка с площадкой
	HealthInterval    time.Duration // health-проверки
	PriceFeedInterval time.Duration // опрос спотовых цен
	DiscoveryInterval time.Duration // обновление каталога рынков
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	File       string // пустое значение - только stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "polytrader"),
			User:     getEnv("DB_USER", "polytrader"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			CLOBBaseURL:  getEnv("CLOB_BASE_URL", "https://clob.polymarket.com"),
			GammaBaseURL: getEnv("GAMMA_BASE_URL", "https://gamma-api.polymarket.com"),
			SpotPriceURL: getEnv("SPOT_PRICE_URL", "https://api.coinbase.com"),
			Address:      getEnv("CLOB_ADDRESS", ""),
			APIKey:       getEnv("CLOB_API_KEY", ""),
			Secret:       getEnv("CLOB_SECRET", ""),
			Passphrase:   getEnv("CLOB_PASSPHRASE", ""),
		},
		Security: SecurityConfig{
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		},
		Bot: BotConfig{
			WorkerInterval:    getEnvAsDuration("WORKER_INTERVAL", 10*time.Second),
			ReconInterval:     getEnvAsDuration("RECON_INTERVAL", time.Minute),
			HealthInterval:    getEnvAsDuration("HEALTH_INTERVAL", 15*time.Second),
			PriceFeedInterval: getEnvAsDuration("PRICE_FEED_INTERVAL", 15*time.Second),
			DiscoveryInterval: getEnvAsDuration("DISCOVERY_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.resolveSecret(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveSecret расшифровывает CLOB_SECRET_ENCRYPTED, если секрет
// хранится зашифрованным. Открытый CLOB_SECRET имеет приоритет.
func (c *Config) resolveSecret() error {
	if c.Exchange.Secret != "" {
		return nil
	}

	encrypted := os.Getenv("CLOB_SECRET_ENCRYPTED")
	if encrypted == "" {
		return nil
	}

	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("CLOB_SECRET_ENCRYPTED is set but ENCRYPTION_KEY is empty")
	}

	secret, err := crypto.DecryptWithKeyString(encrypted, c.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("decrypt CLOB secret: %w", err)
	}
	c.Exchange.Secret = secret
	return nil
}

// validate проверяет диапазоны и согласованность параметров
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	// Частичные креды - скорее всего ошибка конфигурации, а не
	// осознанный выбор симуляции
	creds := []string{c.Exchange.APIKey, c.Exchange.Secret, c.Exchange.Passphrase}
	var set int
	for _, v := range creds {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(creds) {
		return fmt.Errorf("CLOB credentials are partially set: provide all of CLOB_API_KEY, CLOB_SECRET, CLOB_PASSPHRASE or none")
	}

	for _, iv := range []struct {
		name  string
		value time.Duration
	}{
		{"WORKER_INTERVAL", c.Bot.WorkerInterval},
		{"RECON_INTERVAL", c.Bot.ReconInterval},
		{"HEALTH_INTERVAL", c.Bot.HealthInterval},
		{"PRICE_FEED_INTERVAL", c.Bot.PriceFeedInterval},
		{"DISCOVERY_INTERVAL", c.Bot.DiscoveryInterval},
	} {
		if iv.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", iv.name, iv.value)
		}
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
