package domain

import (
	"fmt"
	"net/url"
	"time"
)

// Protocol is the scheme an UpstreamServer is dialled with.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// UpstreamServer is a single backend target (spec.md §3). Health state is
// intentionally not embedded here — it lives in the health monitor (C5),
// keyed by server id, so a server record stays plain data with no cyclic
// ownership (spec.md §9).
type UpstreamServer struct {
	ID       string
	Host     string
	Port     int
	Protocol Protocol
	Weight   int
	Enabled  bool
}

// Key returns the (host, port, scheme) tuple the connection pool (C3) keys
// idle connections by.
func (s *UpstreamServer) Key() string {
	return fmt.Sprintf("%s://%s:%d", s.Protocol, s.Host, s.Port)
}

// URL returns the base URL used to build outbound requests to this server.
func (s *UpstreamServer) URL() *url.URL {
	return &url.URL{
		Scheme: string(s.Protocol),
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
	}
}

// HealthCheckSpec configures the active probe the health monitor (C5) runs
// for a group.
type HealthCheckSpec struct {
	Path             string
	Method           string
	Interval         time.Duration
	Timeout          time.Duration
	ExpectedStatus   int
	HealthyAfter     int // consecutive passes required to flip unhealthy -> healthy
	UnhealthyAfter   int // consecutive failures required to flip -> unhealthy
}

// AffinityKeySource selects what a session key is derived from (spec.md
// §4.10).
type AffinityKeySource string

const (
	AffinityByCookie AffinityKeySource = "cookie"
	AffinityByIP     AffinityKeySource = "ip"
)

// AffinitySpec configures sticky-session behaviour for a group.
type AffinitySpec struct {
	CookieName string
	KeySource  AffinityKeySource
	MaxAge     time.Duration
	Path       string
	HttpOnly   bool
}

// FailoverSpec configures the per-server failure window and cooldown
// (spec.md §4.10).
type FailoverSpec struct {
	WindowDuration time.Duration
	Cooldown       time.Duration
	MaxFailures    int
}

// RetryPolicy bounds how many candidate servers a single request may try
// (spec.md §4.9).
type RetryPolicy struct {
	MaxRetries int
}

// UpstreamGroup is an ordered set of servers sharing a load-balancing
// strategy and optional health/affinity/failover policy (spec.md §3).
type UpstreamGroup struct {
	ID              string
	Servers         []*UpstreamServer
	Strategy        string
	HealthCheck     *HealthCheckSpec
	Affinity        *AffinitySpec
	Failover        *FailoverSpec
	Retry           RetryPolicy
	RequestTimeout  time.Duration
}

// ServerByID looks up a server within the group by id.
func (g *UpstreamGroup) ServerByID(id string) *UpstreamServer {
	for _, s := range g.Servers {
		if s.ID == id {
			return s
		}
	}
	return nil
}
