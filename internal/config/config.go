package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default texts, matching what users of the WeChat bot already know.
const (
	DefaultClearCommand    = "#清除记忆"
	DefaultClearAllCommand = "#清除所有"
	DefaultFallbackReply   = "您好，您问的这个问题我现在暂时无法给出完整的答复，为了能更好地帮到您，我帮您转接给人工客服同事进一步处理吧！"
	DefaultRetryReply      = "抱歉，创建或获取会话失败，请稍后再试。"
	DefaultClearedReply    = "会话已清除"
	DefaultNotClearedReply = "会话不存在或清除失败"
	DefaultClearedAllReply = "所有微信相关会话已尝试清除"
	DefaultDeniedReply     = "没有权限执行该命令"
	DefaultPrivateLabel    = "私聊"
	DefaultGroupLabel      = "群聊用户"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 5000
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "lan"
	}
	if cfg.Backend.CreateTimeoutSeconds == 0 {
		cfg.Backend.CreateTimeoutSeconds = 10
	}
	if cfg.Backend.SendTimeoutSeconds == 0 {
		cfg.Backend.SendTimeoutSeconds = 60
	}
	if cfg.Channel.APIBase == "" {
		cfg.Channel.APIBase = "http://127.0.0.1:8888/wechat/httpapi"
	}
	if cfg.Channel.SendTimeoutSeconds == 0 {
		cfg.Channel.SendTimeoutSeconds = 10
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Session.TTLSeconds == 0 {
		cfg.Session.TTLSeconds = 3600
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "session"
	}
	if cfg.Session.TitleLength == 0 {
		cfg.Session.TitleLength = 8
	}
	if cfg.Session.PrivateLabel == "" {
		cfg.Session.PrivateLabel = DefaultPrivateLabel
	}
	if cfg.Session.GroupLabel == "" {
		cfg.Session.GroupLabel = DefaultGroupLabel
	}
	if cfg.Session.ScanBatch == 0 {
		cfg.Session.ScanBatch = 100
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Commands.Clear == "" {
		cfg.Commands.Clear = DefaultClearCommand
	}
	if cfg.Commands.ClearAll == "" {
		cfg.Commands.ClearAll = DefaultClearAllCommand
	}
	if cfg.Replies.Fallback == "" {
		cfg.Replies.Fallback = DefaultFallbackReply
	}
	if cfg.Replies.Retry == "" {
		cfg.Replies.Retry = DefaultRetryReply
	}
	if cfg.Replies.Cleared == "" {
		cfg.Replies.Cleared = DefaultClearedReply
	}
	if cfg.Replies.NotCleared == "" {
		cfg.Replies.NotCleared = DefaultNotClearedReply
	}
	if cfg.Replies.ClearedAll == "" {
		cfg.Replies.ClearedAll = DefaultClearedAllReply
	}
	if cfg.Replies.Unauthorized == "" {
		cfg.Replies.Unauthorized = DefaultDeniedReply
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}
