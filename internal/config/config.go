package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Report   ReportConfig   `mapstructure:"report"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// ReportConfig configures report download and ingestion.
type ReportConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// HTTPProxy is an optional outbound proxy URL, e.g. http://10.0.0.1:3128.
	HTTPProxy         string `mapstructure:"http_proxy"`
	BatchSize         int    `mapstructure:"batch_size"`
	AdnID             int    `mapstructure:"adn_id"`
	EscalateAfterRuns int    `mapstructure:"escalate_after_runs"`
}

// WorkerConfig configures the task dispatcher.
type WorkerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Schedule    string `mapstructure:"schedule"`
	PollLimit   int    `mapstructure:"poll_limit"`
	MaxRunCount int    `mapstructure:"max_run_count"`

	// RunningTimeout is the lease on a RUNNING task. A task still RUNNING
	// after this long is treated as abandoned and may be claimed again.
	RunningTimeout time.Duration `mapstructure:"running_timeout"`
}

// ArchiveConfig configures the optional raw payload archive.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("report.http_proxy", "REPORT_HTTP_PROXY")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/adnreport.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "adnreport")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("report.endpoint", "https://r.applovin.com/report")
	v.SetDefault("report.timeout", "5m")
	v.SetDefault("report.batch_size", 1000)
	v.SetDefault("report.adn_id", 8)
	v.SetDefault("report.escalate_after_runs", 5)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.schedule", "@every 10m")
	v.SetDefault("worker.poll_limit", 100)
	v.SetDefault("worker.max_run_count", 24)
	v.SetDefault("worker.running_timeout", "30m")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "reports/applovin")
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Report.BatchSize <= 0 {
		return fmt.Errorf("report.batch_size must be positive, got %d", c.Report.BatchSize)
	}
	if c.Report.Timeout <= 0 {
		return fmt.Errorf("report.timeout must be positive, got %s", c.Report.Timeout)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.RunningTimeout > 0 && c.Worker.RunningTimeout <= c.Report.Timeout {
		return fmt.Errorf("worker.running_timeout (%s) must exceed report.timeout (%s)", c.Worker.RunningTimeout, c.Report.Timeout)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	return nil
}
