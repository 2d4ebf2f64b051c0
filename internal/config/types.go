package config

import "time"

// Config is the root configuration for ragrelay.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty" toml:"gateway"`
	Backend  BackendConfig  `yaml:"backend,omitempty" toml:"backend"`
	Channel  ChannelConfig  `yaml:"channel,omitempty" toml:"channel"`
	Session  SessionConfig  `yaml:"session,omitempty" toml:"session"`
	Redis    RedisConfig    `yaml:"redis,omitempty" toml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" toml:"sqlite"`
	Commands CommandsConfig `yaml:"commands,omitempty" toml:"commands"`
	Replies  RepliesConfig  `yaml:"replies,omitempty" toml:"replies"`
	Logging  LoggingConfig  `yaml:"logging,omitempty" toml:"logging"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty" toml:"hooks"`
}

// GatewayConfig controls the inbound HTTP server.
type GatewayConfig struct {
	Port           int             `yaml:"port,omitempty" toml:"port"`
	Bind           string          `yaml:"bind,omitempty" toml:"bind"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty" toml:"customBindHost"`
	Async          bool            `yaml:"async,omitempty" toml:"async"` // acknowledge webhooks before routing
	Auth           GatewayAuth     `yaml:"auth,omitempty" toml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty" toml:"rateLimit"`
}

// GatewayAuth guards the admin session endpoints.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty" toml:"token"`
}

// RateLimitConfig bounds webhook traffic per sender. Zero disables limiting.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"perSecond,omitempty" toml:"perSecond"`
	Burst     int     `yaml:"burst,omitempty" toml:"burst"`
}

// BackendConfig points at the RAGFlow chat assistant.
type BackendConfig struct {
	BaseURL              string `yaml:"baseUrl" toml:"baseUrl"`
	APIKey               string `yaml:"apiKey,omitempty" toml:"apiKey"`
	ChatID               string `yaml:"chatId" toml:"chatId"`
	CreateTimeoutSeconds int    `yaml:"createTimeoutSeconds,omitempty" toml:"createTimeoutSeconds"`
	SendTimeoutSeconds   int    `yaml:"sendTimeoutSeconds,omitempty" toml:"sendTimeoutSeconds"`
}

// CreateTimeout is the bound on a session creation call.
func (b BackendConfig) CreateTimeout() time.Duration {
	return time.Duration(b.CreateTimeoutSeconds) * time.Second
}

// SendTimeout is the bound on a completion call.
func (b BackendConfig) SendTimeout() time.Duration {
	return time.Duration(b.SendTimeoutSeconds) * time.Second
}

// ChannelConfig points at the WeChat HTTP API used for replies.
type ChannelConfig struct {
	APIBase            string `yaml:"apiBase" toml:"apiBase"`
	BotWxid            string `yaml:"botWxid" toml:"botWxid"`
	SendTimeoutSeconds int    `yaml:"sendTimeoutSeconds,omitempty" toml:"sendTimeoutSeconds"`
	MentionReplies     *bool  `yaml:"mentionReplies,omitempty" toml:"mentionReplies"` // defaults to true
}

// SendTimeout is the bound on a single outbound send.
func (c ChannelConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// MentionsEnabled reports whether group replies address the sender.
func (c ChannelConfig) MentionsEnabled() bool {
	return c.MentionReplies == nil || *c.MentionReplies
}

// SessionConfig defines how conversation identities bind to backend sessions.
type SessionConfig struct {
	Store        string `yaml:"store,omitempty" toml:"store"` // "redis" | "sqlite"
	TTLSeconds   int    `yaml:"ttlSeconds,omitempty" toml:"ttlSeconds"`
	KeyPrefix    string `yaml:"keyPrefix,omitempty" toml:"keyPrefix"`
	TitleLength  int    `yaml:"titleLength,omitempty" toml:"titleLength"`
	PrivateLabel string `yaml:"privateLabel,omitempty" toml:"privateLabel"` // title prefix for private chats
	GroupLabel   string `yaml:"groupLabel,omitempty" toml:"groupLabel"`     // title prefix for group members
	LockStripes  int    `yaml:"lockStripes,omitempty" toml:"lockStripes"`   // 0 accepts the duplicate-create race
	ScanBatch    int    `yaml:"scanBatch,omitempty" toml:"scanBatch"`
}

// TTL is the sliding expiry applied to bindings.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// RedisConfig locates the Redis session store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" toml:"addr"`
	Password string `yaml:"password,omitempty" toml:"password"`
	DB       int    `yaml:"db,omitempty" toml:"db"`
}

// SQLiteConfig locates the embedded session store. Empty Path means
// <data dir>/ragrelay.db.
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty" toml:"path"`
}

// CommandsConfig names the reserved chat commands.
type CommandsConfig struct {
	Clear    string   `yaml:"clear,omitempty" toml:"clear"`
	ClearAll string   `yaml:"clearAll,omitempty" toml:"clearAll"`
	Admins   []string `yaml:"admins,omitempty" toml:"admins"` // who may run clearAll; empty = anyone
}

// RepliesConfig holds the user-facing texts the router sends on its own.
type RepliesConfig struct {
	Fallback     string `yaml:"fallback,omitempty" toml:"fallback"`
	Retry        string `yaml:"retry,omitempty" toml:"retry"`
	Cleared      string `yaml:"cleared,omitempty" toml:"cleared"`
	NotCleared   string `yaml:"notCleared,omitempty" toml:"notCleared"`
	ClearedAll   string `yaml:"clearedAll,omitempty" toml:"clearedAll"`
	Unauthorized string `yaml:"unauthorized,omitempty" toml:"unauthorized"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" toml:"level"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty" toml:"file"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty" toml:"consoleStyle"` // "pretty" | "json"
}

// HooksConfig defines shell commands run on lifecycle events.
type HooksConfig struct {
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty" toml:"messageReceived"`
	ReplySent       []HookEntry `yaml:"replySent,omitempty" toml:"replySent"`
	SessionCreated  []HookEntry `yaml:"sessionCreated,omitempty" toml:"sessionCreated"`
	SessionCleared  []HookEntry `yaml:"sessionCleared,omitempty" toml:"sessionCleared"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty" toml:"gatewayStart"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty" toml:"gatewayStop"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command" toml:"command"`
	Timeout int    `yaml:"timeout,omitempty" toml:"timeout"` // milliseconds
}
