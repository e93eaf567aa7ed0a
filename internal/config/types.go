package config

import "time"

// Config is the top-level gatewire configuration (spec.md §6): one
// process, one or more gateways, each an independent listener with its
// own route table.
type Config struct {
	Environment             string           `json:"environment" yaml:"environment"`
	LogLevel                string           `json:"logLevel" yaml:"logLevel"`
	Gateways                []GatewayConfig  `json:"gateways" yaml:"gateways"`
	GracefulShutdownTimeout time.Duration    `json:"gracefulShutdownTimeout" yaml:"gracefulShutdownTimeout"`
	MetricsPort             int              `json:"metricsPort" yaml:"metricsPort"`
	GracefulShutdown        bool             `json:"gracefulShutdown" yaml:"gracefulShutdown"`
	HandleSignals           bool             `json:"handleSignals" yaml:"handleSignals"`
	Metrics                 bool             `json:"metrics" yaml:"metrics"`
	Logging                 LoggingConfig    `json:"logging" yaml:"logging"`
	Engineering             EngineeringConfig `json:"engineering" yaml:"engineering"`
}

// GatewayConfig is one listener: its bind address, optional TLS mode,
// routes, named middleware, and connection-level tunables.
type GatewayConfig struct {
	Host              string         `json:"host" yaml:"host"`
	Port              int            `json:"port" yaml:"port"`
	TLS               *TLSConfig     `json:"tls,omitempty" yaml:"tls,omitempty"`
	Routes            []RouteConfig  `json:"routes" yaml:"routes"`
	Middleware        []string       `json:"middleware" yaml:"middleware"`
	ConnectionTimeout time.Duration  `json:"connectionTimeout" yaml:"connectionTimeout"`
	RequestTimeout    time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
	MaxConnections    int            `json:"maxConnections" yaml:"maxConnections"`
	KeepAliveTimeout  time.Duration  `json:"keepAliveTimeout" yaml:"keepAliveTimeout"`
	KeepAlive         bool           `json:"keepAlive" yaml:"keepAlive"`
}

// TLSMode selects how C11 handles the TLS handshake for a gateway.
type TLSMode string

const (
	TLSModeTerminate   TLSMode = "terminate"
	TLSModePassthrough TLSMode = "passthrough"
	TLSModeReencrypt   TLSMode = "reencrypt"
)

// TLSConfig configures the gateway's TLS dispatcher (spec.md §4.11).
type TLSConfig struct {
	Mode         TLSMode `json:"mode" yaml:"mode"`
	CertFile     string  `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile      string  `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	UpstreamCert string  `json:"upstreamCert,omitempty" yaml:"upstreamCert,omitempty"`
	PeekSNI      bool    `json:"peekSni" yaml:"peekSni"`
}

// RouteConfig is one routing rule (spec.md §4.7).
type RouteConfig struct {
	ID          string         `json:"id" yaml:"id"`
	PathPattern string         `json:"pathPattern" yaml:"pathPattern"`
	HostPattern string         `json:"hostPattern,omitempty" yaml:"hostPattern,omitempty"`
	Methods     []string       `json:"methods,omitempty" yaml:"methods,omitempty"`
	Upstream    UpstreamConfig `json:"upstream" yaml:"upstream"`
	Priority    int            `json:"priority" yaml:"priority"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
}

// UpstreamConfig is one route's pool of backend servers plus the policies
// that govern selecting among them (spec.md §3, §4.6, §4.10).
type UpstreamConfig struct {
	LoadBalancingStrategy string                `json:"loadBalancingStrategy" yaml:"loadBalancingStrategy"`
	HealthCheck           *HealthCheckConfig    `json:"healthCheck,omitempty" yaml:"healthCheck,omitempty"`
	SessionAffinity       *SessionAffinityConfig `json:"sessionAffinity,omitempty" yaml:"sessionAffinity,omitempty"`
	Failover              *FailoverConfig       `json:"failover,omitempty" yaml:"failover,omitempty"`
	RetryPolicy           *RetryPolicyConfig    `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
	Servers               []ServerConfig        `json:"servers" yaml:"servers"`
	Timeout               time.Duration         `json:"timeout" yaml:"timeout"`
}

// ServerConfig is one upstream backend.
type ServerConfig struct {
	ID       string `json:"id" yaml:"id"`
	Host     string `json:"host" yaml:"host"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Port     int    `json:"port" yaml:"port"`
	Weight   int    `json:"weight" yaml:"weight"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// HealthCheckConfig drives the C5 active-probe scheduler.
type HealthCheckConfig struct {
	Path           string        `json:"path" yaml:"path"`
	Method         string        `json:"method" yaml:"method"`
	Interval       time.Duration `json:"interval" yaml:"interval"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
	ExpectedStatus int           `json:"expectedStatus" yaml:"expectedStatus"`
	HealthyAfter   int           `json:"healthyAfter" yaml:"healthyAfter"`
	UnhealthyAfter int           `json:"unhealthyAfter" yaml:"unhealthyAfter"`
}

// SessionAffinityKeySource selects what the affinity key is derived from.
type SessionAffinityKeySource string

const (
	AffinitySourceCookie SessionAffinityKeySource = "cookie"
	AffinitySourceIP     SessionAffinityKeySource = "ip"
)

// SessionAffinityConfig configures sticky routing (spec.md §4.10).
type SessionAffinityConfig struct {
	CookieName string                   `json:"cookieName,omitempty" yaml:"cookieName,omitempty"`
	KeySource  SessionAffinityKeySource `json:"keySource" yaml:"keySource"`
	Path       string                   `json:"path,omitempty" yaml:"path,omitempty"`
	MaxAge     time.Duration            `json:"maxAge" yaml:"maxAge"`
	HTTPOnly   bool                     `json:"httpOnly" yaml:"httpOnly"`
}

// FailoverConfig configures the sliding-window failure tracker that backs
// affinity failover (spec.md §4.10).
type FailoverConfig struct {
	WindowDuration time.Duration `json:"windowDuration" yaml:"windowDuration"`
	Cooldown       time.Duration `json:"cooldown" yaml:"cooldown"`
	MaxFailures    int           `json:"maxFailures" yaml:"maxFailures"`
}

// RetryPolicyConfig bounds C9's retry behaviour on retriable errors.
type RetryPolicyConfig struct {
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
}

// LoggingConfig controls the structured logger (internal/logger).
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	Theme      string `json:"theme" yaml:"theme"`
	LogDir     string `json:"logDir" yaml:"logDir"`
	MaxSizeMB  int    `json:"maxSizeMb" yaml:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" yaml:"maxAgeDays"`
	FileOutput bool   `json:"fileOutput" yaml:"fileOutput"`
	PrettyLogs bool   `json:"prettyLogs" yaml:"prettyLogs"`
}

// EngineeringConfig holds development/debugging toggles.
type EngineeringConfig struct {
	ShowNerdStats bool `json:"showNerdStats" yaml:"showNerdStats"`
}

// RateLimitRuleConfig is one named rate-limit bucket definition,
// referenced by name from a gateway's middleware[] list (resolves
// spec.md §9's rate-limit storage ambiguity; see DESIGN.md).
type RateLimitRuleConfig struct {
	KeySource         string        `json:"keySource" yaml:"keySource"` // "ip", "header:<name>", "route"
	RequestsPerMinute int           `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int           `json:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `json:"cleanupInterval" yaml:"cleanupInterval"`
}
