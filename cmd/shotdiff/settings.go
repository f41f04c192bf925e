package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/shotdiff/capture"
	"github.com/hairizuanbinnoorazman/shotdiff/database"
	"github.com/hairizuanbinnoorazman/shotdiff/spider"
	"github.com/hairizuanbinnoorazman/shotdiff/storage"
	"github.com/spf13/viper"
)

// Settings holds application configuration. The capture config passed to
// each command describes what to shoot; Settings describes how.
type Settings struct {
	Log      LogSettings
	Database DatabaseSettings
	Storage  StorageSettings
	Server   ServerSettings
	Capture  CaptureSettings
	Spider   SpiderSettings
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level  string
	Format string
}

// DatabaseSettings holds run database configuration.
type DatabaseSettings struct {
	Enabled      bool
	AutoMigrate  bool
	Driver       string
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// StorageSettings holds publish target configuration.
type StorageSettings struct {
	Type          string // "local" or "s3"
	BaseDir       string // For local: "./published"
	Bucket        string
	Region        string
	Prefix        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PresignExpiry time.Duration
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CaptureSettings holds screenshot engine configuration.
type CaptureSettings struct {
	Workers    int
	Retries    int
	Timeout    time.Duration
	SnapScript string
	ChromePath string
}

// SpiderSettings holds crawler configuration.
type SpiderSettings struct {
	Concurrency       int
	RequestsPerSecond float64
	MaxPages          int
	Timeout           time.Duration
}

// LoadSettings loads settings from file and SHOTDIFF_* environment variables.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shotdiff")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shotdiff")
	}

	v.SetEnvPrefix("shotdiff")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.path", ".shotdiff/runs.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "shotdiff")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./published")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.presign_expiry", "15m")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("capture.workers", 4)
	v.SetDefault("capture.retries", 1)
	v.SetDefault("capture.timeout", "60s")
	v.SetDefault("capture.snap_script", "")
	v.SetDefault("capture.chrome_path", "")

	v.SetDefault("spider.concurrency", 4)
	v.SetDefault("spider.requests_per_second", 5)
	v.SetDefault("spider.max_pages", 500)
	v.SetDefault("spider.timeout", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	var s Settings

	s.Log.Level = v.GetString("log.level")
	s.Log.Format = v.GetString("log.format")

	s.Database.Enabled = v.GetBool("database.enabled")
	s.Database.AutoMigrate = v.GetBool("database.auto_migrate")
	s.Database.Driver = v.GetString("database.driver")
	s.Database.Path = v.GetString("database.path")
	s.Database.Host = v.GetString("database.host")
	s.Database.Port = v.GetInt("database.port")
	s.Database.User = v.GetString("database.user")
	s.Database.Password = v.GetString("database.password")
	s.Database.Database = v.GetString("database.database")
	s.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	s.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")

	s.Storage.Type = v.GetString("storage.type")
	s.Storage.BaseDir = v.GetString("storage.base_dir")
	s.Storage.Bucket = v.GetString("storage.bucket")
	s.Storage.Region = v.GetString("storage.region")
	s.Storage.Prefix = v.GetString("storage.prefix")
	s.Storage.Endpoint = v.GetString("storage.endpoint")
	s.Storage.AccessKey = v.GetString("storage.access_key")
	s.Storage.SecretKey = v.GetString("storage.secret_key")
	s.Storage.PresignExpiry = v.GetDuration("storage.presign_expiry")

	s.Server.Host = v.GetString("server.host")
	s.Server.Port = v.GetInt("server.port")
	s.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	s.Server.WriteTimeout = v.GetDuration("server.write_timeout")

	s.Capture.Workers = v.GetInt("capture.workers")
	s.Capture.Retries = v.GetInt("capture.retries")
	s.Capture.Timeout = v.GetDuration("capture.timeout")
	s.Capture.SnapScript = v.GetString("capture.snap_script")
	s.Capture.ChromePath = v.GetString("capture.chrome_path")

	s.Spider.Concurrency = v.GetInt("spider.concurrency")
	s.Spider.RequestsPerSecond = v.GetFloat64("spider.requests_per_second")
	s.Spider.MaxPages = v.GetInt("spider.max_pages")
	s.Spider.Timeout = v.GetDuration("spider.timeout")

	return &s, nil
}

// DatabaseConfig converts the settings for database.Connect.
func (s *Settings) DatabaseConfig() database.Config {
	return database.Config{
		Driver:       s.Database.Driver,
		Path:         s.Database.Path,
		Host:         s.Database.Host,
		Port:         s.Database.Port,
		User:         s.Database.User,
		Password:     s.Database.Password,
		Database:     s.Database.Database,
		MaxOpenConns: s.Database.MaxOpenConns,
		MaxIdleConns: s.Database.MaxIdleConns,
		Debug:        strings.EqualFold(s.Log.Level, "trace"),
	}
}

// StorageConfig converts the settings for storage.New.
func (s *Settings) StorageConfig() storage.Config {
	return storage.Config{
		Type:          s.Storage.Type,
		BaseDir:       s.Storage.BaseDir,
		Bucket:        s.Storage.Bucket,
		Region:        s.Storage.Region,
		Prefix:        s.Storage.Prefix,
		Endpoint:      s.Storage.Endpoint,
		AccessKey:     s.Storage.AccessKey,
		SecretKey:     s.Storage.SecretKey,
		PresignExpiry: s.Storage.PresignExpiry,
	}
}

// EngineOptions converts the capture settings for capture.NewEngine.
func (s *Settings) EngineOptions() capture.EngineOptions {
	return capture.EngineOptions{
		SnapScript: s.Capture.SnapScript,
		Timeout:    s.Capture.Timeout,
		ChromePath: s.Capture.ChromePath,
	}
}

// SpiderOptions converts the spider settings for spider.New.
func (s *Settings) SpiderOptions() spider.Options {
	opts := spider.Options{
		Concurrency:       s.Spider.Concurrency,
		RequestsPerSecond: s.Spider.RequestsPerSecond,
		MaxPages:          s.Spider.MaxPages,
	}
	if s.Spider.Timeout > 0 {
		opts.Client = newHTTPClient(s.Spider.Timeout)
	}
	return opts
}
