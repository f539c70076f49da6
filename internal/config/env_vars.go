package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelVar    = "LOG_LEVEL"
	redisURLVar    = "REDIS_URL"
	keyPrefixVar   = "KEY_PREFIX"
	configFileVar  = "CONFIG_FILE"
	defaultEnvName = "DEV"
)

// source resolves a key from the environment first, then the optional config file.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value := GetEnv(key, ""); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (s source) getList(key string, defaultValue []string) []string {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type EnvVars struct{ source }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Broker Auth")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.get(envVar, defaultEnvName))
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

// IsDevelopment reports whether the deployment is a development one.
func IsDevelopment(c EnvConfig) bool {
	return c.GetEnv() == defaultEnvName
}

type Store struct{ source }

var _ StoreConfig = Store{}

// GetRedisURL returns the redis connection URL. Empty selects the in-memory store.
func (s Store) GetRedisURL() string {
	return s.get(redisURLVar, "")
}

func (s Store) GetKeyPrefix() string {
	return s.get(keyPrefixVar, "brokerauth")
}

// ConfigFileFromEnv returns the optional YAML config path.
func ConfigFileFromEnv() string {
	return GetEnv(configFileVar, "")
}

// GetEnv returns the environment variable or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
