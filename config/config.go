// Package config loads the settings of the queryengine CLI and of hosts that embed the engine.
//
// Values come from, in increasing precedence: defaults, an optional config file (any format viper
// reads) and QUERYENGINE_ prefixed environment variables. QUERYENGINE_DATASOURCE_OVERRIDES takes
// a JSON object mapping datasource names to URLs.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
)

const (
	envPrefix = "QUERYENGINE"

	keySchemaPath          = "schema_path"
	keyLogLevel            = "log_level"
	keyLogQueries          = "log_queries"
	keyConnectTimeout      = "connect_timeout"
	keyIgnoreEnvVarErrors  = "ignore_env_var_errors"
	keyDatasourceOverrides = "datasource_overrides"
	keyRuntimeSize         = "runtime_size"

	defaultSchemaPath     = "schema.hcl"
	defaultLogLevel       = "info"
	defaultConnectTimeout = 10 * time.Second
	defaultRuntimeSize    = 4
)

var (
	ErrReadingConfigFailed   = errors.New("reading config file failed")
	ErrDecodingConfigFailed  = errors.New("decoding config failed")
	ErrInvalidConnectTimeout = errors.New("connect timeout must not be negative")
	ErrInvalidRuntimeSize    = errors.New("runtime size must be positive")
)

// Config holds the settings needed to build and run an engine.
type Config struct {
	SchemaPath          string            `mapstructure:"schema_path"`
	LogLevel            string            `mapstructure:"log_level"`
	LogQueries          bool              `mapstructure:"log_queries"`
	ConnectTimeout      time.Duration     `mapstructure:"connect_timeout"`
	IgnoreEnvVarErrors  bool              `mapstructure:"ignore_env_var_errors"`
	DatasourceOverrides map[string]string `mapstructure:"-"`
	RuntimeSize         int               `mapstructure:"runtime_size"`
}

// Load reads configFile, if given, and the environment.
func Load(configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault(keySchemaPath, defaultSchemaPath)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyLogQueries, false)
	v.SetDefault(keyConnectTimeout, defaultConnectTimeout)
	v.SetDefault(keyIgnoreEnvVarErrors, false)
	v.SetDefault(keyDatasourceOverrides, map[string]string{})
	v.SetDefault(keyRuntimeSize, defaultRuntimeSize)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrReadingConfigFailed, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(ErrDecodingConfigFailed, err)
	}

	cfg.DatasourceOverrides = v.GetStringMapString(keyDatasourceOverrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values Load cannot type check.
func (c Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return ErrInvalidConnectTimeout
	}

	if c.RuntimeSize <= 0 {
		return ErrInvalidRuntimeSize
	}

	return nil
}

// EngineParams combines c with a schema and the environment its env() calls resolve against.
func (c Config) EngineParams(datamodel string, env map[string]string) engine.Params {
	return engine.Params{
		Env:                 env,
		Datamodel:           datamodel,
		LogLevel:            c.LogLevel,
		LogQueries:          c.LogQueries,
		DatasourceOverrides: c.DatasourceOverrides,
		IgnoreEnvVarErrors:  c.IgnoreEnvVarErrors,
	}
}

// ProcessEnv returns the environment of the current process as a map.
func ProcessEnv() map[string]string {
	env := make(map[string]string)
	for _, pair := range os.Environ() {
		if key, value, ok := strings.Cut(pair, "="); ok {
			env[key] = value
		}
	}

	return env
}
