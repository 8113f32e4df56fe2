package config

import (
	"os"
	"regexp"
	"time"

	"github.com/amoylab/mdprovider/pkg/helper"
	"github.com/amoylab/mdprovider/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// ProviderConfig represents the market data provider configuration
	ProviderConfig struct {
		Listen     ListenConfig     `yaml:"listen"`
		Admin      AdminConfig      `yaml:"admin"`
		PID        string           `yaml:"pid"`
		Logger     LoggerConfig     `yaml:"logger"`
		Session    SessionConfig    `yaml:"session"`
		Notifier   NotifierConfig   `yaml:"notifier"`
		Login      LoginConfig      `yaml:"login"`
		Service    ServiceConfig    `yaml:"service"`
		Dictionary DictionaryConfig `yaml:"dictionary"`
		Metrics    MetricsConfig    `yaml:"metrics"`
		Tracing    trace.Config     `yaml:"tracing"`
		Transport  TransportConfig  `yaml:"transport"`
	}

	// ListenConfig is where consumers connect
	ListenConfig struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Path string `yaml:"path"` // websocket upgrade path, default /ws
	}

	// AdminConfig is the health/metrics http server
	AdminConfig struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	}

	// SessionConfig represents the session metadata store configuration
	SessionConfig struct {
		Type  string             `yaml:"type"`  // "memory" or "redis"
		Redis SessionRedisConfig `yaml:"redis"` // Redis configuration
	}

	// SessionRedisConfig represents the Redis configuration for session storage
	SessionRedisConfig struct {
		ClusterType string        `yaml:"cluster_type"` // single, sentinel, cluster
		Addr        string        `yaml:"addr"`
		MasterName  string        `yaml:"master_name"`
		Username    string        `yaml:"username"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		Topic       string        `yaml:"topic"`
		Prefix      string        `yaml:"prefix"`
		TTL         time.Duration `yaml:"ttl"` // TTL for session data in Redis
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// LoginConfig controls how login requests are authenticated and what the
	// provider advertises back in the login refresh
	LoginConfig struct {
		Auth                        string       `yaml:"auth"` // none, static, jwt
		Host                        string       `yaml:"host"` // reported in the accept text, default os.Hostname
		Users                       []UserConfig `yaml:"users"`
		JWT                         JWTConfig    `yaml:"jwt"`
		SupportPauseResume          bool         `yaml:"support_pause_resume"`
		SupportOptimizedPauseResume bool         `yaml:"support_optimized_pause_resume"`
	}

	// UserConfig is one static login. Password is a bcrypt hash.
	UserConfig struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	}

	JWTConfig struct {
		SecretKey string `yaml:"secret_key"`
		Issuer    string `yaml:"issuer"`
	}

	// ServiceConfig describes the single published service
	ServiceConfig struct {
		Name           string        `yaml:"name"`
		ID             uint16        `yaml:"id"`
		Vendor         string        `yaml:"vendor"`
		IsSource       bool          `yaml:"is_source"`
		QoS            []string      `yaml:"qos"`
		Domains        []string      `yaml:"domains"` // instrument model types served, e.g. MarketPrice
		Items          []string      `yaml:"items"`
		AllowAnyItem   bool          `yaml:"allow_any_item"`
		UpdateInterval time.Duration `yaml:"update_interval"`
		Seed           int64         `yaml:"seed"` // price walk seed, 0 means time based
	}

	// DictionaryConfig points at the field and enum dictionary files
	DictionaryConfig struct {
		FieldPath    string `yaml:"field_path"`
		EnumPath     string `yaml:"enum_path"`
		FieldName    string `yaml:"field_name"`
		EnumName     string `yaml:"enum_name"`
		FragmentSize int    `yaml:"fragment_size"`
	}

	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TransportConfig tunes the websocket transport and the dispatch queue
	TransportConfig struct {
		QueueSize    int           `yaml:"queue_size"`
		WriteBuffer  int           `yaml:"write_buffer"`
		RateLimit    float64       `yaml:"rate_limit"` // inbound messages per second per connection, 0 disables
		RateBurst    int           `yaml:"rate_burst"`
		ReadLimit    int64         `yaml:"read_limit"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// OriginPatterns are the browser origins allowed to connect; empty allows same host only
		OriginPatterns []string `yaml:"origin_patterns"`
	}
)

type Type interface {
	ProviderConfig
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	if pc, ok := any(&cfg).(*ProviderConfig); ok {
		pc.SetDefaults()
	}

	return &cfg, cfgPath, nil
}

// SetDefaults fills every zero value that has a sensible default
func (c *ProviderConfig) SetDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 14002
	}
	if c.Listen.Path == "" {
		c.Listen.Path = "/ws"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 15002
	}
	if c.Session.Type == "" {
		c.Session.Type = "memory"
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "mdprovider:session:"
	}
	if c.Session.Redis.Topic == "" {
		c.Session.Redis.Topic = "mdprovider:session:updates"
	}
	if c.Notifier.Type == "" {
		c.Notifier.Type = "memory"
	}
	if c.Notifier.Role == "" {
		c.Notifier.Role = string(RoleBoth)
	}
	if c.Notifier.Redis.Topic == "" {
		c.Notifier.Redis.Topic = "mdprovider:service:state"
	}
	if c.Login.Auth == "" {
		c.Login.Auth = "none"
	}
	if c.Login.Host == "" {
		if host, err := os.Hostname(); err == nil {
			c.Login.Host = host
		} else {
			c.Login.Host = "localhost"
		}
	}
	if c.Service.Name == "" {
		c.Service.Name = "DIRECT_FEED"
	}
	if c.Service.ID == 0 {
		c.Service.ID = 1
	}
	if len(c.Service.Domains) == 0 {
		c.Service.Domains = []string{"MarketPrice"}
	}
	if c.Service.UpdateInterval <= 0 {
		c.Service.UpdateInterval = time.Second
	}
	if c.Dictionary.FieldName == "" {
		c.Dictionary.FieldName = "RWFFld"
	}
	if c.Dictionary.EnumName == "" {
		c.Dictionary.EnumName = "RWFEnum"
	}
	if c.Dictionary.FragmentSize <= 0 {
		c.Dictionary.FragmentSize = 256
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "mdprovider"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "mdprovider"
	}
	if c.Transport.QueueSize <= 0 {
		c.Transport.QueueSize = 4096
	}
	if c.Transport.WriteBuffer <= 0 {
		c.Transport.WriteBuffer = 256
	}
	if c.Transport.RateBurst <= 0 {
		c.Transport.RateBurst = 100
	}
	if c.Transport.ReadLimit <= 0 {
		c.Transport.ReadLimit = 1 << 20
	}
	if c.Transport.WriteTimeout <= 0 {
		c.Transport.WriteTimeout = 5 * time.Second
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
