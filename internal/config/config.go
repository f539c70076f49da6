package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jrsteele09/brokerauth/internal/utils"
)

type Config interface {
	EnvConfig
	StoreConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type StoreConfig interface {
	GetRedisURL() string
	GetKeyPrefix() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Store
	Cors
	OAuth
	Security
}

// New returns a configuration backed by environment variables only.
func New() Config {
	return newMainConfig(source{})
}

// Load reads a flat YAML document of KEY: value pairs and overlays it with the
// environment. Environment variables win over file values.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] failed to read %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config Load] failed to parse %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case []any:
			values[k] = strings.Join(utils.ToStringSlice(v), ",")
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return newMainConfig(source{file: values}), nil
}

func newMainConfig(src source) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{src},
		Store:    Store{src},
		Cors:     Cors{src},
		OAuth:    OAuth{src},
		Security: Security{src},
	}
}
