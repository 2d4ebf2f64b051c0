package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}
	if cfg.Gateway.RateLimit.PerSecond < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.rateLimit.perSecond",
			Message: "must not be negative",
		})
	}
	if cfg.Gateway.RateLimit.PerSecond > 0 && cfg.Gateway.RateLimit.Burst < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.rateLimit.burst",
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}

	// Backend validation
	issues = append(issues, validateURL("backend.baseUrl", cfg.Backend.BaseURL)...)
	if cfg.Backend.ChatID == "" {
		issues = append(issues, ValidationIssue{
			Path:    "backend.chatId",
			Message: "chat assistant id is required",
		})
	}
	if cfg.Backend.CreateTimeoutSeconds < 0 || cfg.Backend.SendTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "backend",
			Message: "timeouts must not be negative",
		})
	} else if b := cfg.Backend; b.CreateTimeoutSeconds > 0 && b.SendTimeoutSeconds > 0 && b.SendTimeoutSeconds <= b.CreateTimeoutSeconds {
		issues = append(issues, ValidationIssue{
			Path:    "backend.sendTimeoutSeconds",
			Message: fmt.Sprintf("must be longer than createTimeoutSeconds (%d), got %d", b.CreateTimeoutSeconds, b.SendTimeoutSeconds),
		})
	}

	// Channel validation
	issues = append(issues, validateURL("channel.apiBase", cfg.Channel.APIBase)...)
	if cfg.Channel.BotWxid == "" {
		issues = append(issues, ValidationIssue{
			Path:    "channel.botWxid",
			Message: "bot account id is required",
		})
	}

	// Session validation
	validStores := []string{"redis", "sqlite"}
	if !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}
	if cfg.Session.TTLSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.ttlSeconds",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Session.TTLSeconds),
		})
	}
	if strings.ContainsAny(cfg.Session.KeyPrefix, ":*?[]") {
		issues = append(issues, ValidationIssue{
			Path:    "session.keyPrefix",
			Message: "must not contain ':' or glob characters",
		})
	}
	if cfg.Session.LockStripes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.lockStripes",
			Message: "must not be negative",
		})
	}

	// Commands validation
	if cfg.Commands.Clear == cfg.Commands.ClearAll {
		issues = append(issues, ValidationIssue{
			Path:    "commands.clearAll",
			Message: "must differ from commands.clear",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

func validateURL(path, raw string) []ValidationIssue {
	if raw == "" {
		return []ValidationIssue{{Path: path, Message: "url is required"}}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []ValidationIssue{{Path: path, Message: fmt.Sprintf("must be an http(s) url, got %q", raw)}}
	}
	return nil
}
