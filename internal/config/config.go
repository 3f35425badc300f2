package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// GetEnv is a helper to read an environment variable or return a default value.
// Values from the optional config file act as the fallback layer beneath the environment.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := fileValues()[key]; ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer setting, falling back when unset or malformed.
func GetEnvInt(key string, fallback int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring non-integer config value.", "key", key, "value", raw)
		return fallback
	}
	return n
}

// GetEnvFloat reads a float setting, falling back when unset or malformed.
func GetEnvFloat(key string, fallback float64) float64 {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("Ignoring non-numeric config value.", "key", key, "value", raw)
		return fallback
	}
	return f
}

// Require returns the value of key or an error naming the missing variable.
func Require(key string) (string, error) {
	value := GetEnv(key, "")
	if value == "" {
		return "", fmt.Errorf("%s environment variable must be set", key)
	}
	return value, nil
}

// FileEnvVar names the variable holding the path of the YAML config overlay.
const FileEnvVar = "TENDERFLOW_CONFIG"

var (
	mu           sync.Mutex
	loadedPath   string
	loadedValues map[string]string
)

func fileValues() map[string]string {
	path := os.Getenv(FileEnvVar)
	if path == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if loadedValues != nil && loadedPath == path {
		return loadedValues
	}
	values, err := LoadFile(path)
	if err != nil {
		slog.Warn("Failed to load config file, using environment only.", "path", path, "error", err)
		values = map[string]string{}
	}
	loadedPath, loadedValues = path, values
	return values
}

// LoadFile parses a flat YAML mapping of setting names to scalar values.
//
//	PROGRESS_BACKEND: badger
//	IMAGE_CONCURRENCY: 4
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for key, v := range raw {
		switch typed := v.(type) {
		case nil:
			continue
		case map[string]any, []any:
			return nil, fmt.Errorf("config key %s must be a scalar", key)
		default:
			values[key] = fmt.Sprint(typed)
		}
	}
	return values, nil
}
