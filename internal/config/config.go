package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// DefaultFile is read when USERDESK_CONFIG_FILE is not set.
const DefaultFile = "userdesk.yaml"

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	configFile := os.Getenv("USERDESK_CONFIG_FILE")
	if configFile == "" {
		configFile = DefaultFile
	}
	LoadWith(configFile)
}

// LoadWith is Load with an explicit config file.
func LoadWith(configFile string) {
	LoadDefault()

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	// Environment variables have the highest priority
	ApplyEnvOverrides()
}

func LoadDefault() {
	config := defaultConfig
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  nil,
		},
		API: apiConfig{
			BaseURL: "https://jsonplaceholder.typicode.com/users",
			Timeout: 30 * time.Second,
		},
		List: listConfig{
			ShowInactive:   false,
			MaxCount:       10,
			DebounceWindow: 300 * time.Millisecond,
		},
		Form: formConfig{
			SubmitDelay: time.Second,
		},
		Redis: redisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			Database: 0,
			TTL:      time.Hour,
		},
		Postgres: postgresConfig{
			User:     "postgres",
			Password: "postgres",
			Host:     "localhost",
			Port:     5432,
			Database: "userdesk",
		},
		Upstream: upstreamConfig{
			Host:  "0.0.0.0",
			Port:  8090,
			Store: "memory",
			Seed:  true,
		},
	},
}

type Common struct {
	Log      logConfig      `yaml:"log"`
	Http     httpConfig     `yaml:"http"`
	API      apiConfig      `yaml:"api"`
	List     listConfig     `yaml:"list"`
	Form     formConfig     `yaml:"form"`
	Redis    redisConfig    `yaml:"redis"`
	Postgres postgresConfig `yaml:"postgres"`
	Upstream upstreamConfig `yaml:"upstream"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // empty allows every origin
}

func (c httpConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type apiConfig struct {
	BaseURL string        `yaml:"base_url"` // user collection endpoint
	Timeout time.Duration `yaml:"timeout"`
}

type listConfig struct {
	ShowInactive   bool          `yaml:"show_inactive"`
	MaxCount       int           `yaml:"max_count"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

type formConfig struct {
	SubmitDelay time.Duration `yaml:"submit_delay"`
}

type redisConfig struct {
	Enabled  bool          `yaml:"enabled"` // mirror the cached list to redis
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	TTL      time.Duration `yaml:"ttl"`
}

func (c redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type postgresConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type upstreamConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Store string `yaml:"store"` // "memory" or "postgres"
	Seed  bool   `yaml:"seed"`  // seed an empty store with sample users
}

func (c upstreamConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func API() apiConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.API
}

func List() listConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.List
}

func Form() formConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Form
}

func Redis() redisConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Redis
}

func Postgres() postgresConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Postgres
}

func Upstream() upstreamConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Upstream
}

// Get returns the full configuration
func Get() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}

func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}
	c := &_loaded.Common

	setString("USERDESK_LOG_LEVEL", &c.Log.Level)
	setString("USERDESK_LOG_FORMAT", &c.Log.Format)

	setString("USERDESK_HTTP_HOST", &c.Http.Host)
	setInt("USERDESK_HTTP_PORT", &c.Http.Port)

	setString("USERDESK_API_BASE_URL", &c.API.BaseURL)
	setDuration("USERDESK_API_TIMEOUT", &c.API.Timeout)

	setBool("USERDESK_LIST_SHOW_INACTIVE", &c.List.ShowInactive)
	setInt("USERDESK_LIST_MAX_COUNT", &c.List.MaxCount)
	setDuration("USERDESK_LIST_DEBOUNCE", &c.List.DebounceWindow)

	setDuration("USERDESK_FORM_SUBMIT_DELAY", &c.Form.SubmitDelay)

	setBool("USERDESK_REDIS_ENABLED", &c.Redis.Enabled)
	setString("USERDESK_REDIS_HOST", &c.Redis.Host)
	setInt("USERDESK_REDIS_PORT", &c.Redis.Port)
	setString("USERDESK_REDIS_PASSWORD", &c.Redis.Password)

	setString("USERDESK_DB_HOST", &c.Postgres.Host)
	setInt("USERDESK_DB_PORT", &c.Postgres.Port)
	setString("USERDESK_DB_USER", &c.Postgres.User)
	setString("USERDESK_DB_PASSWORD", &c.Postgres.Password)
	setString("USERDESK_DB_NAME", &c.Postgres.Database)

	setString("USERDESK_UPSTREAM_HOST", &c.Upstream.Host)
	setInt("USERDESK_UPSTREAM_PORT", &c.Upstream.Port)
	setString("USERDESK_UPSTREAM_STORE", &c.Upstream.Store)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
