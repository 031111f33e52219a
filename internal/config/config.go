package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/validator"
)

const (
	// EnvConfigPath - переменная окружения с путем к YAML конфигурации
	EnvConfigPath = "RESCALE_CONFIG"
	// EnvPrefix - префикс переменных окружения, переопределяющих ключи
	EnvPrefix = "RESCALE"

	defaultConfigPath = "config.yaml"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Store        StoreConfig        `mapstructure:"store"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Log          LogConfig          `mapstructure:"log"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Observations ObservationsConfig `mapstructure:"observations"`
	UnitKinds    []UnitKindConfig   `mapstructure:"unit_kinds" validate:"required,min=1,dive"`
	Output       OutputConfig       `mapstructure:"output"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Env  string `mapstructure:"env"`

	// CORSOrigins - список через запятую
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// StatementTimeout ограничивает выборку наблюдений и слоев; 0 - без ограничения
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize    int           `mapstructure:"pool_size" validate:"gte=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// StoreConfig - каталог прогонов (sqlite для локальных запусков, postgres для сервиса)
type StoreConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Driver      string `mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	ResultsTTL time.Duration `mapstructure:"results_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

type WorkerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ConsumerGroup     string        `mapstructure:"consumer_group"`
	StreamReadTimeout time.Duration `mapstructure:"stream_read_timeout"`
	BatchSize         int64         `mapstructure:"batch_size" validate:"gte=0"`
	Concurrency       int           `mapstructure:"concurrency" validate:"gte=0"`
	// ClaimIdle - простой запроса в PEL, после которого его забирает другой воркер
	ClaimIdle time.Duration `mapstructure:"claim_idle"`
}

// ObservationsConfig - источник записей наблюдений
type ObservationsConfig struct {
	Source string `mapstructure:"source" validate:"required,oneof=csv postgis"`
	EPSG   int    `mapstructure:"epsg" validate:"required,gt=0"`

	// csv: шаблон пути, {indicator} заменяется именем индикатора
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter" validate:"omitempty,len=1"`

	// postgis
	Table           string `mapstructure:"table"`
	IndicatorColumn string `mapstructure:"indicator_column"`
	GeomColumn      string `mapstructure:"geom_column"`

	Schema domain.SchemaMapping `mapstructure:"schema" validate:"dive"`
}

// UnitKindConfig - тип единиц, его слой и порог минимального числа наблюдений
type UnitKindConfig struct {
	Kind         domain.UnitKind    `mapstructure:"kind" validate:"required,unitkind"`
	MinimumCount int                `mapstructure:"minimum_count" validate:"required,min=1"`
	Accuracy     bool               `mapstructure:"accuracy"`
	Layer        domain.LayerSource `mapstructure:"layer"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// Load читает конфигурацию из файла RESCALE_CONFIG (по умолчанию config.yaml)
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigPath))
}

// LoadFile читает YAML конфигурацию; переменные RESCALE_* переопределяют ключи файла
func LoadFile(path string) (*Config, error) {
	// .env необязателен: секреты БД и Redis обычно приходят из него
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = defaultConfigPath
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rescale")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.statement_timeout", "5m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("cache.results_ttl", "24h")

	v.SetDefault("log.level", "info")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.consumer_group", "rescale-workers")
	v.SetDefault("worker.stream_read_timeout", "5s")
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.concurrency", 0)

	v.SetDefault("observations.source", "csv")
	v.SetDefault("observations.path", "observations/{indicator}.csv")
	v.SetDefault("observations.delimiter", ",")
	v.SetDefault("observations.indicator_column", "indicator")

	v.SetDefault("output.dir", "output")
}

// applyDefaults заполняет значения, зависящие от окружения или других ключей
func applyDefaults(cfg *Config) {
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = runtime.NumCPU()
	}
	if cfg.Worker.StreamReadTimeout == 0 {
		cfg.Worker.StreamReadTimeout = 5 * time.Second
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 10
	}
	if cfg.Worker.ClaimIdle == 0 {
		cfg.Worker.ClaimIdle = 30 * time.Minute
	}
	if cfg.Observations.Delimiter == "" {
		cfg.Observations.Delimiter = ","
	}
	for i := range cfg.UnitKinds {
		layer := &cfg.UnitKinds[i].Layer
		if layer.Type == domain.LayerSourcePostGIS && layer.GeomColumn == "" {
			layer.GeomColumn = "geom"
		}
		if layer.Type == domain.LayerSourcePostGIS && layer.IDField == "" {
			layer.IDField = "id"
		}
	}
}

// Validate проверяет конфигурацию до запуска вычислений
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[domain.UnitKind]struct{}, len(c.UnitKinds))
	for _, uk := range c.UnitKinds {
		if _, dup := seen[uk.Kind]; dup {
			return fmt.Errorf("invalid config: unit kind %q configured twice", uk.Kind)
		}
		seen[uk.Kind] = struct{}{}

		if err := validateLayer(uk.Kind, uk.Layer); err != nil {
			return err
		}
	}

	switch c.Observations.Source {
	case "csv":
		if c.Observations.Path == "" {
			return fmt.Errorf("invalid config: observations.path is required for csv source")
		}
	case "postgis":
		if c.Observations.Table == "" {
			return fmt.Errorf("invalid config: observations.table is required for postgis source")
		}
	}

	return nil
}

func validateLayer(kind domain.UnitKind, layer domain.LayerSource) error {
	switch layer.Type {
	case domain.LayerSourceGrid:
		if layer.Grid == nil {
			return fmt.Errorf("invalid config: unit kind %q: grid layer needs a grid section", kind)
		}
		if err := validator.Validate(layer.Grid); err != nil {
			return fmt.Errorf("invalid config: unit kind %q: %w", kind, err)
		}
	case domain.LayerSourceGeoJSON, domain.LayerSourceShapefile:
		if layer.Path == "" {
			return fmt.Errorf("invalid config: unit kind %q: %s layer needs a path", kind, layer.Type)
		}
	case domain.LayerSourcePostGIS:
		if layer.Table == "" {
			return fmt.Errorf("invalid config: unit kind %q: postgis layer needs a table", kind)
		}
	}
	return nil
}

// ObservationCRS возвращает объявленную CRS наблюдений
func (c *Config) ObservationCRS() domain.CRS {
	return domain.NewCRS(c.Observations.EPSG)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetStoreDSN возвращает DSN каталога прогонов; для postgres без явного DSN используется основная БД
func (c *Config) GetStoreDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	if c.Store.Driver == "postgres" {
		return c.GetDatabaseDSN()
	}
	return "rescale.db"
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
