package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
// It ignores comments (starting with #) and empty lines.
func LoadEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove inline comments
		if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		env[key] = value
	}

	return env, scanner.Err()
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Defaults
	if val, ok := env["DEFAULT_MODE"]; ok {
		cfg.Defaults.Mode = val
	}
	if val, ok := env["DEFAULT_MAX_ROUNDS"]; ok {
		if rounds, err := strconv.Atoi(val); err == nil {
			cfg.Defaults.MaxRounds = rounds
		}
	}
	if val, ok := env["DEFAULT_PACING"]; ok {
		cfg.Defaults.Pacing = val
	}
	if val, ok := env["DEFAULT_AUTO_DELAY"]; ok {
		if delay, err := strconv.Atoi(val); err == nil {
			cfg.Defaults.AutoDelaySeconds = delay
		}
	}

	// Per-provider overrides and credentials
	for name, provider := range cfg.Providers {
		upper := strings.ToUpper(name)

		if val, ok := env[fmt.Sprintf("PROVIDER_%s_ENABLED", upper)]; ok {
			if boolVal, err := strconv.ParseBool(val); err == nil {
				provider.Enabled = boolVal
			}
		}
		if val, ok := env[fmt.Sprintf("PROVIDER_%s_MODEL", upper)]; ok {
			provider.Model = val
		}

		// Raw API keys (ANTHROPIC_API_KEY etc.) feed the gateway credential
		// lookup; a key in .env wins over the process environment.
		if provider.KeyEnv != "" {
			if val, ok := env[provider.KeyEnv]; ok {
				provider.APIKey = val
			}
		}

		cfg.Providers[name] = provider
	}
}
