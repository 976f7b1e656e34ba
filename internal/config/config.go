package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`

		// Gate slots for pipeline invocations; 0 means unlimited.
		MaxConcurrent int64 `mapstructure:"max_concurrent"`

		UseGPU        bool   `mapstructure:"use_gpu"`
		UseGPULimited bool   `mapstructure:"use_gpu_limited"`
		Verbose       bool   `mapstructure:"verbose"`
		ModelsTTL     int    `mapstructure:"models_ttl"`
		RetryAttempts *int   `mapstructure:"retry_attempts"` // unset leaves client attempts alone
		FontDir       string `mapstructure:"font_dir"`
	} `mapstructure:"server"`

	Pipeline struct {
		Provider string        `mapstructure:"provider"` // "none" or "remote"
		Endpoint string        `mapstructure:"endpoint"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"pipeline"`

	Image struct {
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
		MaxBytes     int64         `mapstructure:"max_bytes"`
	} `mapstructure:"image"`

	Batch struct {
		DefaultSize int `mapstructure:"default_size"`
		MaxImages   int `mapstructure:"max_images"`
	} `mapstructure:"batch"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency     int            `mapstructure:"concurrency"`
		Queues          map[string]int `mapstructure:"queues"`
		ResultRetention time.Duration  `mapstructure:"result_retention"`
	} `mapstructure:"worker"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`
}

// ListenAddr joins the server address and port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Addr, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.max_concurrent", 1)
	v.SetDefault("server.models_ttl", 0)

	v.SetDefault("pipeline.provider", "none")
	v.SetDefault("pipeline.timeout", 10*time.Minute)

	v.SetDefault("image.fetch_timeout", 30*time.Second)
	v.SetDefault("image.max_bytes", 64<<20)

	v.SetDefault("batch.default_size", 4)
	v.SetDefault("batch.max_images", 100)

	v.SetDefault("redis.address", "127.0.0.1:6379")

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queues", map[string]int{"translate": 1})
	v.SetDefault("worker.result_retention", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory (or the file given
// in path) and overlays MTSERVER_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// server.max_concurrent -> MTSERVER_SERVER_MAX_CONCURRENT
	v.SetEnvPrefix("MTSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	// AutomaticEnv does not reach keys without a default.
	if raw := v.GetString("server.retry_attempts"); raw != "" && config.Server.RetryAttempts == nil {
		n := v.GetInt("server.retry_attempts")
		config.Server.RetryAttempts = &n
	}

	return &config, nil
}
