package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the injected configuration tree for the pipeline. Nothing in
// the pipeline reads ambient environment state directly; every connector
// and the coordinator receive their section from here.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	FleetDB    FleetDBConfig    `mapstructure:"fleetdb"`
	SFTP       SFTPConfig       `mapstructure:"sftp"`
	JSONFeed   JSONFeedConfig   `mapstructure:"jsonfeed"`
	HTMLReport HTMLReportConfig `mapstructure:"htmlreport"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
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

// DatabaseConfig configures the primary reading store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"` // sqlite only
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// FleetDBConfig configures the secondary live database (the legacy fleet
// supervisor's MySQL instance), consumed read-only.
type FleetDBConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DSN builds the MySQL connection string.
func (c *FleetDBConfig) DSN() string {
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, timeout)
}

// SFTPConfig configures the per-device CSV file drop.
type SFTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	IncomingDir    string        `mapstructure:"incoming_dir"`
	ProcessedDir   string        `mapstructure:"processed_dir"`
	ErrorsDir      string        `mapstructure:"errors_dir"`
	FilePrefix     string        `mapstructure:"file_prefix"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// JSONFeedConfig configures the JSON export endpoint.
type JSONFeedConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTMLReportConfig configures the legacy HTML report endpoint.
type HTMLReportConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig configures raw-file archival to S3-compatible storage.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// PipelineConfig holds run coordination settings.
type PipelineConfig struct {
	MinInterval     time.Duration     `mapstructure:"min_interval"`
	RunTimeout      time.Duration     `mapstructure:"run_timeout"`
	LockTTL         time.Duration     `mapstructure:"lock_ttl"`
	FileLimit       int               `mapstructure:"file_limit"`
	RecordLimit     int               `mapstructure:"record_limit"`
	FreshnessWindow time.Duration     `mapstructure:"freshness_window"`
	Schedules       map[string]string `mapstructure:"schedules"` // source -> cron spec, daemon mode only
}

// Load reads configuration from a YAML file with environment overrides.
func Load(configPath string) (*Config, error) {
	// Load .env file if present
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

	// Bind environment variables explicitly for credentials
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("fleetdb.password", "FLEETDB_PASSWORD")
	v.BindEnv("sftp.password", "SFTP_PASSWORD")
	v.BindEnv("jsonfeed.token", "JSONFEED_TOKEN")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/telemetry.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("fleetdb.port", 3306)
	v.SetDefault("fleetdb.connect_timeout", 10*time.Second)

	v.SetDefault("sftp.port", 22)
	v.SetDefault("sftp.incoming_dir", "/incoming")
	v.SetDefault("sftp.processed_dir", "/processed")
	v.SetDefault("sftp.errors_dir", "/errors")
	v.SetDefault("sftp.file_prefix", "CCC")
	v.SetDefault("sftp.scratch_dir", "./data/scratch")
	v.SetDefault("sftp.connect_timeout", 15*time.Second)

	v.SetDefault("jsonfeed.timeout", 30*time.Second)
	v.SetDefault("htmlreport.timeout", 30*time.Second)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "telemetry-raw")

	v.SetDefault("pipeline.min_interval", 10*time.Minute)
	v.SetDefault("pipeline.run_timeout", 5*time.Minute)
	v.SetDefault("pipeline.lock_ttl", 15*time.Minute)
	v.SetDefault("pipeline.file_limit", 20)
	v.SetDefault("pipeline.record_limit", 50)
	v.SetDefault("pipeline.freshness_window", 5*time.Minute)
}
