package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RequestTimeout  time.Duration
		BodyLimit       int // максимальный размер запроса в МБ
		BaseURL         string
	}

	Postgres struct {
		Host        string
		Port        int
		User        string
		Password    string
		DBName      string
		SSLMode     string
		Timeout     time.Duration
		PoolSize    int // размер пула соединений
		AutoMigrate bool
	}

	Redis struct {
		Host              string
		Port              int
		Password          string
		DB                int
		Prefix            string
		DefaultExpiration time.Duration // срок действия кэша идентификаторов
	}

	Kafka struct {
		Brokers           []string
		GroupID           string
		ClientID          string
		ProductEvents     string // события платформы о товарах
		Commands          string // команды плагину
		Identifiers       string // события плагина
		AutoOffsetReset   string
		Partitions        int
		ReplicationFactor int
		EnsureTopics      bool
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int
	}

	Security struct {
		JWTPublicKeyPath  string
		JWTPrivateKeyPath string
		JWTIssuer         string
		JWTExpirationMin  time.Duration
		NonceSecret       string
		NonceLifetime     time.Duration
		CORSAllowOrigins  []string
		RateLimitRPS      float64
		RateLimitBurst    int
		RoleCapabilities  map[string][]string // роль -> права; пусто - значения по умолчанию
	}

	Plugin struct {
		Version string
		Debug   bool
	}

	// Worker - принципал, от имени которого воркер и eanctl выполняют команды
	Worker struct {
		UserID string
		Roles  []string
	}

	Keycloak KeycloakConfig
}

// defaultNonceSecret допустим только вне production
const defaultNonceSecret = "change-me"

// ErrDefaultNonceSecret возвращается, если в production не задан NONCE_SECRET
var ErrDefaultNonceSecret = errors.New("в production необходимо задать security.nonceSecret (NONCE_SECRET)")

// Load загружает конфигурацию из .env, файла и переменных окружения
func Load(configPath string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// без файла используются только переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	cfg.ENV = v.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if cfg.IsProduction() && (cfg.Security.NonceSecret == "" || cfg.Security.NonceSecret == defaultNonceSecret) {
		return nil, ErrDefaultNonceSecret
	}

	return &cfg, nil
}

// IsProduction сообщает, запущен ли сервис в production окружении
func (c *Config) IsProduction() bool {
	return c.ENV == "production"
}

// PostgresDSN собирает строку подключения к каталогу
func (c *Config) PostgresDSN() (string, error) {
	return utils.GenerateConnectionString(
		c.Postgres.Host, c.Postgres.User, c.Postgres.Password, c.Postgres.DBName, c.Postgres.SSLMode,
		c.Postgres.Port, c.Postgres.PoolSize, c.Postgres.Timeout,
	)
}

// PluginSettings возвращает настройки, которые передаются в сервисы
func (c *Config) PluginSettings() models.PluginSettings {
	return models.PluginSettings{
		Version:  c.Plugin.Version,
		Debug:    c.Plugin.Debug,
		CacheTTL: c.Redis.DefaultExpiration,
	}
}

// WorkerPrincipal возвращает принципала для фоновых команд
func (c *Config) WorkerPrincipal() *interfaces.Principal {
	return &interfaces.Principal{
		UserID:   c.Worker.UserID,
		Username: c.Worker.UserID,
		Roles:    c.Worker.Roles,
	}
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "ean-service")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "60s") // выгрузка CSV может идти долго
	v.SetDefault("server.shutdownTimeout", "5s")
	v.SetDefault("server.requestTimeout", "30s")
	v.SetDefault("server.bodyLimit", 10)
	v.SetDefault("server.baseURL", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "postgres")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)
	v.SetDefault("postgres.autoMigrate", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "")
	v.SetDefault("redis.defaultExpiration", "10m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "ean-service")
	v.SetDefault("kafka.clientID", "ean-service")
	v.SetDefault("kafka.productEvents", "product-events")
	v.SetDefault("kafka.commands", "ean-commands")
	v.SetDefault("kafka.identifiers", "product-identifiers")
	v.SetDefault("kafka.autoOffsetReset", "earliest")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replicationFactor", 1)
	v.SetDefault("kafka.ensureTopics", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("security.jwtPublicKeyPath", "")
	v.SetDefault("security.jwtPrivateKeyPath", "")
	v.SetDefault("security.jwtIssuer", "ean-service")
	v.SetDefault("security.jwtExpirationMin", "60m")
	v.SetDefault("security.nonceSecret", defaultNonceSecret)
	v.SetDefault("security.nonceLifetime", "24h")
	v.SetDefault("security.corsAllowOrigins", []string{"*"})
	v.SetDefault("security.rateLimitRPS", 50)
	v.SetDefault("security.rateLimitBurst", 100)

	v.SetDefault("plugin.version", "1.0.0")
	v.SetDefault("plugin.debug", false)

	v.SetDefault("worker.userID", "ean-worker")
	v.SetDefault("worker.roles", []string{"admin"})

	v.SetDefault("keycloak.enabled", false)
	v.SetDefault("keycloak.realm", "gomarket")
	v.SetDefault("keycloak.clientID", "ean-service")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("appName", "APP_NAME")
	_ = v.BindEnv("version", "APP_VERSION")
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("env", "APP_ENV")

	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("server.requestTimeout", "SERVER_REQUEST_TIMEOUT")
	_ = v.BindEnv("server.bodyLimit", "SERVER_BODY_LIMIT")
	_ = v.BindEnv("server.baseURL", "SERVER_BASE_URL")

	_ = v.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	_ = v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	_ = v.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	_ = v.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")
	_ = v.BindEnv("postgres.autoMigrate", "POSTGRES_AUTO_MIGRATE")

	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.prefix", "REDIS_PREFIX")
	_ = v.BindEnv("redis.defaultExpiration", "REDIS_DEFAULT_EXPIRATION")

	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	_ = v.BindEnv("kafka.clientID", "KAFKA_CLIENT_ID")
	_ = v.BindEnv("kafka.productEvents", "KAFKA_PRODUCT_EVENTS_TOPIC")
	_ = v.BindEnv("kafka.commands", "KAFKA_COMMANDS_TOPIC")
	_ = v.BindEnv("kafka.identifiers", "KAFKA_IDENTIFIERS_TOPIC")
	_ = v.BindEnv("kafka.autoOffsetReset", "KAFKA_AUTO_OFFSET_RESET")
	_ = v.BindEnv("kafka.partitions", "KAFKA_PARTITIONS")
	_ = v.BindEnv("kafka.replicationFactor", "KAFKA_REPLICATION_FACTOR")
	_ = v.BindEnv("kafka.ensureTopics", "KAFKA_ENSURE_TOPICS")

	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.endpoint", "METRICS_ENDPOINT")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")

	_ = v.BindEnv("security.jwtPublicKeyPath", "JWT_PUBLIC_KEY_PATH")
	_ = v.BindEnv("security.jwtPrivateKeyPath", "JWT_PRIVATE_KEY_PATH")
	_ = v.BindEnv("security.jwtIssuer", "JWT_ISSUER")
	_ = v.BindEnv("security.jwtExpirationMin", "JWT_EXPIRATION_MIN")
	_ = v.BindEnv("security.nonceSecret", "NONCE_SECRET")
	_ = v.BindEnv("security.nonceLifetime", "NONCE_LIFETIME")
	_ = v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
	_ = v.BindEnv("security.rateLimitRPS", "RATE_LIMIT_RPS")
	_ = v.BindEnv("security.rateLimitBurst", "RATE_LIMIT_BURST")

	_ = v.BindEnv("plugin.version", "PLUGIN_VERSION")
	_ = v.BindEnv("plugin.debug", "PLUGIN_DEBUG")

	_ = v.BindEnv("worker.userID", "WORKER_USER_ID")
	_ = v.BindEnv("worker.roles", "WORKER_ROLES")

	_ = v.BindEnv("keycloak.enabled", "KEYCLOAK_ENABLED")
	_ = v.BindEnv("keycloak.serverURL", "KEYCLOAK_SERVER_URL")
	_ = v.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	_ = v.BindEnv("keycloak.clientID", "KEYCLOAK_CLIENT_ID")
	_ = v.BindEnv("keycloak.clientSecret", "KEYCLOAK_CLIENT_SECRET")
	_ = v.BindEnv("keycloak.redirectURL", "KEYCLOAK_REDIRECT_URL")
}
