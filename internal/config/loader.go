package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Backend.APIKey = expandEnvVars(cfg.Backend.APIKey)
	cfg.Redis.Password = expandEnvVars(cfg.Redis.Password)
}

// isTOML reports whether path should be parsed as TOML rather than YAML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, data []byte, v any) error {
	if isTOML(path) {
		return toml.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only. Files ending in
// .toml are parsed as TOML, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := unmarshal(path, data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyEnvOverrides reads RAGRELAY_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGRELAY_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("RAGRELAY_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("RAGRELAY_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("RAGRELAY_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("RAGRELAY_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("RAGRELAY_BACKEND_CHAT_ID"); v != "" {
		cfg.Backend.ChatID = v
	}
	if v := os.Getenv("RAGRELAY_WECHAT_API_BASE"); v != "" {
		cfg.Channel.APIBase = v
	}
	if v := os.Getenv("RAGRELAY_BOT_WXID"); v != "" {
		cfg.Channel.BotWxid = v
	}
	if v := os.Getenv("RAGRELAY_SESSION_STORE"); v != "" {
		cfg.Session.Store = strings.ToLower(v)
	}
	if v := os.Getenv("RAGRELAY_SESSION_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Session.TTLSeconds = ttl
		}
	}
	if v := os.Getenv("RAGRELAY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RAGRELAY_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RAGRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
