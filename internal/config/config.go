package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/migrate-cli/internal/locale"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Migrate MigrateConfig `yaml:"migrate" mapstructure:"migrate"`
	Locale  LocaleConfig  `yaml:"locale" mapstructure:"locale"`
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MigrateConfig configures record assembly and batch execution.
type MigrateConfig struct {
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	RecordsPerSecond float64 `yaml:"records_per_second" mapstructure:"records_per_second"`
	IDKey            string  `yaml:"id_key" mapstructure:"id_key"`
	LocaleKey        string  `yaml:"locale_key" mapstructure:"locale_key"`
	TypeKey          string  `yaml:"type_key" mapstructure:"type_key"`
	TitleKey         string  `yaml:"title_key" mapstructure:"title_key"`
	UIDAffix         string  `yaml:"uid_affix" mapstructure:"uid_affix"`
	OutputDir        string  `yaml:"output_dir" mapstructure:"output_dir"`
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// LocaleConfig configures locale reconciliation and destination mapping.
type LocaleConfig struct {
	NoLanguage      string            `yaml:"no_language" mapstructure:"no_language"`
	English         string            `yaml:"english" mapstructure:"english"`
	EnglishRegional string            `yaml:"english_regional" mapstructure:"english_regional"`
	Master          string            `yaml:"master" mapstructure:"master"`
	Mapping         map[string]string `yaml:"mapping" mapstructure:"mapping"`
}

// Sentinels returns the reconciliation sentinel codes.
func (c LocaleConfig) Sentinels() locale.Sentinels {
	return locale.Sentinels{
		NoLanguage:      c.NoLanguage,
		English:         c.English,
		EnglishRegional: c.EnglishRegional,
	}
}

// Mapper returns the destination locale mapper.
func (c LocaleConfig) Mapper() *locale.Mapper {
	return locale.NewMapper(c.Mapping, c.Master, c.Sentinels())
}

// IndexConfig selects where the reference index is loaded from.
type IndexConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "migrate.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("migrate.concurrency", 8)
	v.SetDefault("migrate.records_per_second", 0)
	v.SetDefault("migrate.id_key", "nid")
	v.SetDefault("migrate.locale_key", "langcode")
	v.SetDefault("migrate.type_key", "type")
	v.SetDefault("migrate.title_key", "title")
	v.SetDefault("migrate.output_dir", "out")
	v.SetDefault("migrate.retry_attempts", 3)
	v.SetDefault("locale.no_language", "und")
	v.SetDefault("locale.english", "en")
	v.SetDefault("locale.english_regional", "en-us")
	v.SetDefault("locale.master", "en-us")
	v.SetDefault("index.source", "store")
	v.SetDefault("index.dir", "feeds")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Migrate.Concurrency <= 0 {
		return eris.Errorf("config: migrate.concurrency must be positive, got %d", c.Migrate.Concurrency)
	}
	if c.Migrate.RecordsPerSecond < 0 {
		return eris.New("config: migrate.records_per_second must not be negative")
	}
	if c.Locale.NoLanguage == "" || c.Locale.English == "" || c.Locale.EnglishRegional == "" {
		return eris.New("config: locale sentinel codes must not be empty")
	}
	if bad := locale.ValidateMapping(c.Locale.Mapping); len(bad) > 0 {
		return eris.Errorf("config: invalid destination locales %v", bad)
	}
	switch c.Index.Source {
	case "store", "files":
	default:
		return eris.Errorf("config: unknown index source %q", c.Index.Source)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
