package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	// A .env file, when present, feeds the env-override pass below.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env file")
	}

	// Start with defaults
	_loaded = &defaultConfig

	configFile := os.Getenv("PROPBOT_CONFIG_FILE")
	if configFile == "" {
		configFile = "propbot.yaml"
	}

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file %s: %v, using defaults", configFile, err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	// Apply environment variable overrides (highest priority)
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
			Host: "0.0.0.0",
			Port: 8080,
		},
		Auth: authConfig{
			ClusterAPIKey: "propbot_cluster_default_key", // Default key for development
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "propbot",
			MaxOpenConnections: 10,
		},
		Whatsapp: whatsappConfig{
			APIBase:     "https://graph.facebook.com/v18.0",
			Token:       "",
			PhoneID:     "",
			VerifyToken: "",
		},
		Session: sessionConfig{
			IdleTimeout:  2 * time.Hour,
			HistoryLimit: 20,
			LockWait:     3 * time.Second,
		},
		Bot: botConfig{
			ResultLimit: 5,
			AuditTrail:  false,
		},
	},
}

type Common struct {
	Log      logConfig      `yaml:"log"`
	Http     httpConfig     `yaml:"http"`
	Auth     authConfig     `yaml:"auth"`
	Postgres postgresConfig `yaml:"postgres"`
	Whatsapp whatsappConfig `yaml:"whatsapp"`
	Session  sessionConfig  `yaml:"session"`
	Bot      botConfig      `yaml:"bot"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type authConfig struct {
	ClusterAPIKey string `yaml:"cluster_api_key"` // API key for session management operations
}

type postgresConfig struct {
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
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

type whatsappConfig struct {
	APIBase     string `yaml:"api_base"`     // Graph API base URL
	Token       string `yaml:"token"`        // Bearer token for outbound sends
	PhoneID     string `yaml:"phone_id"`     // Business phone number id
	VerifyToken string `yaml:"verify_token"` // Webhook verification handshake token
}

type sessionConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // Sessions idle longer than this are expired
	HistoryLimit int           `yaml:"history_limit"` // Conversation turns kept per session
	LockWait     time.Duration `yaml:"lock_wait"`     // Bounded wait for the per-identity lock
}

type botConfig struct {
	ResultLimit int  `yaml:"result_limit"` // Max listings per search response
	AuditTrail  bool `yaml:"audit_trail"`  // Persist message logs to Postgres
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

func Auth() authConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Auth
}

func Postgres() postgresConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Postgres
}

func Whatsapp() whatsappConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Whatsapp
}

func Session() sessionConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Session
}

func Bot() botConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Bot
}

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

	if dbHost := os.Getenv("PROPBOT_DB_HOST"); dbHost != "" {
		_loaded.Common.Postgres.Host = dbHost
	}
	if dbPort := os.Getenv("PROPBOT_DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			_loaded.Common.Postgres.Port = port
		}
	}
	if dbUser := os.Getenv("PROPBOT_DB_USER"); dbUser != "" {
		_loaded.Common.Postgres.User = dbUser
	}
	if dbPassword := os.Getenv("PROPBOT_DB_PASSWORD"); dbPassword != "" {
		_loaded.Common.Postgres.Password = dbPassword
	}
	if dbName := os.Getenv("PROPBOT_DB_NAME"); dbName != "" {
		_loaded.Common.Postgres.Database = dbName
	}

	if httpHost := os.Getenv("PROPBOT_HTTP_HOST"); httpHost != "" {
		_loaded.Common.Http.Host = httpHost
	}
	if httpPort := os.Getenv("PROPBOT_HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			_loaded.Common.Http.Port = port
		}
	}

	if clusterAPIKey := os.Getenv("PROPBOT_CLUSTER_API_KEY"); clusterAPIKey != "" {
		_loaded.Common.Auth.ClusterAPIKey = clusterAPIKey
	}

	if waToken := os.Getenv("PROPBOT_WHATSAPP_TOKEN"); waToken != "" {
		_loaded.Common.Whatsapp.Token = waToken
	}
	if waPhoneID := os.Getenv("PROPBOT_WHATSAPP_PHONE_ID"); waPhoneID != "" {
		_loaded.Common.Whatsapp.PhoneID = waPhoneID
	}
	if waVerify := os.Getenv("PROPBOT_WHATSAPP_VERIFY_TOKEN"); waVerify != "" {
		_loaded.Common.Whatsapp.VerifyToken = waVerify
	}
	if waBase := os.Getenv("PROPBOT_WHATSAPP_API_BASE"); waBase != "" {
		_loaded.Common.Whatsapp.APIBase = waBase
	}

	if idle := os.Getenv("PROPBOT_SESSION_IDLE_TIMEOUT"); idle != "" {
		if d, err := time.ParseDuration(idle); err == nil {
			_loaded.Common.Session.IdleTimeout = d
		}
	}
	if limit := os.Getenv("PROPBOT_SESSION_HISTORY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			_loaded.Common.Session.HistoryLimit = n
		}
	}
	if wait := os.Getenv("PROPBOT_SESSION_LOCK_WAIT"); wait != "" {
		if d, err := time.ParseDuration(wait); err == nil {
			_loaded.Common.Session.LockWait = d
		}
	}

	if resultLimit := os.Getenv("PROPBOT_BOT_RESULT_LIMIT"); resultLimit != "" {
		if n, err := strconv.Atoi(resultLimit); err == nil && n > 0 {
			_loaded.Common.Bot.ResultLimit = n
		}
	}
	if audit := os.Getenv("PROPBOT_BOT_AUDIT_TRAIL"); audit != "" {
		if enabled, err := strconv.ParseBool(audit); err == nil {
			_loaded.Common.Bot.AuditTrail = enabled
		}
	}
}
