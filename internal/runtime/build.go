package runtime

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/brightloom/gatewire/internal/adapter/balancer"
	"github.com/brightloom/gatewire/internal/adapter/listener"
	"github.com/brightloom/gatewire/internal/adapter/middleware"
	"github.com/brightloom/gatewire/internal/adapter/proxy"
	"github.com/brightloom/gatewire/internal/adapter/router"
	"github.com/brightloom/gatewire/internal/adapter/tlsdispatch"
	"github.com/brightloom/gatewire/internal/adapter/upstreamregistry"
	"github.com/brightloom/gatewire/internal/config"
	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
	"github.com/brightloom/gatewire/pkg/portmgr"
)

// routesFromConfig converts one gateway's declared routes and their
// upstream groups into domain values, returning the route list and the
// distinct upstream groups it references. Each gateway gets its own
// upstreamregistry.Static, so group ids only need to be unique within one
// gateway's route list, not process-wide.
func routesFromConfig(routeCfgs []config.RouteConfig) ([]*domain.Route, []*domain.UpstreamGroup) {
	routes := make([]*domain.Route, 0, len(routeCfgs))
	groups := make([]*domain.UpstreamGroup, 0, len(routeCfgs))

	for _, rc := range routeCfgs {
		groupID := rc.ID
		group := upstreamGroupFromConfig(groupID, rc.Upstream)
		groups = append(groups, group)

		route := domain.NewRoute(rc.ID, rc.PathPattern, groupID, rc.Priority)
		route.HostPattern = rc.HostPattern
		route.Enabled = rc.Enabled
		for _, m := range rc.Methods {
			route.Methods[domain.Method(m)] = struct{}{}
		}
		routes = append(routes, route)
	}

	return routes, groups
}

func upstreamGroupFromConfig(id string, uc config.UpstreamConfig) *domain.UpstreamGroup {
	servers := make([]*domain.UpstreamServer, 0, len(uc.Servers))
	for _, sc := range uc.Servers {
		servers = append(servers, &domain.UpstreamServer{
			ID:       sc.ID,
			Host:     sc.Host,
			Port:     sc.Port,
			Protocol: domain.Protocol(sc.Protocol),
			Weight:   sc.Weight,
			Enabled:  sc.Enabled,
		})
	}

	group := &domain.UpstreamGroup{
		ID:             id,
		Servers:        servers,
		Strategy:       uc.LoadBalancingStrategy,
		RequestTimeout: uc.Timeout,
	}

	if uc.HealthCheck != nil {
		group.HealthCheck = &domain.HealthCheckSpec{
			Path:           uc.HealthCheck.Path,
			Method:         uc.HealthCheck.Method,
			Interval:       uc.HealthCheck.Interval,
			Timeout:        uc.HealthCheck.Timeout,
			ExpectedStatus: uc.HealthCheck.ExpectedStatus,
			HealthyAfter:   uc.HealthCheck.HealthyAfter,
			UnhealthyAfter: uc.HealthCheck.UnhealthyAfter,
		}
	}
	if uc.SessionAffinity != nil {
		group.Affinity = &domain.AffinitySpec{
			CookieName: uc.SessionAffinity.CookieName,
			KeySource:  domain.AffinityKeySource(uc.SessionAffinity.KeySource),
			MaxAge:     uc.SessionAffinity.MaxAge,
			Path:       uc.SessionAffinity.Path,
			HttpOnly:   uc.SessionAffinity.HTTPOnly,
		}
	}
	if uc.Failover != nil {
		group.Failover = &domain.FailoverSpec{
			WindowDuration: uc.Failover.WindowDuration,
			Cooldown:       uc.Failover.Cooldown,
			MaxFailures:    uc.Failover.MaxFailures,
		}
	}
	if uc.RetryPolicy != nil {
		group.Retry = domain.RetryPolicy{MaxRetries: uc.RetryPolicy.MaxRetries}
	}

	return group
}

// middlewareFromNames resolves a gateway's configured middleware names
// into ports.Middleware instances. "recover" and "request-id" are always
// present regardless of configuration, since every gateway needs panic
// containment and request correlation (spec.md §4.8); "logging" and
// "rate-limit" are opt-in by name.
func middlewareFromNames(names []string, log *slog.Logger, rlStore ports.RateLimitStore, rule *config.RateLimitRuleConfig) *middleware.Chain {
	chain := middleware.NewChain()
	chain.Use(middleware.NewRecover(log))
	chain.Use(middleware.NewRequestID())

	for _, name := range names {
		switch name {
		case "logging":
			chain.Use(middleware.NewLogging(log))
		case "rate-limit":
			if rlStore == nil || rule == nil {
				continue
			}
			keyBy := middleware.KeyByClientIP
			headerName := ""
			switch {
			case rule.KeySource == "route":
				keyBy = middleware.KeyByPrincipal
			case len(rule.KeySource) > len("header:") && rule.KeySource[:7] == "header:":
				keyBy = middleware.KeyByHeader
				headerName = rule.KeySource[7:]
			}
			window := time.Minute
			chain.Use(middleware.NewRateLimit(rlStore, keyBy, headerName, rule.RequestsPerMinute, window))
		}
	}

	return chain
}

// gatewayComponents bundles one gateway's assembled collaborators, sharing
// the runtime-wide health monitor, affinity tracker and connection pool
// (spec.md §5: "the connection pool... the route table... health state...
// affinity map" are the shared resources, not per-gateway ones).
type gatewayComponents struct {
	cfg      config.GatewayConfig
	dispatch *tlsdispatch.Dispatcher
	listener *listener.Listener
	groups   []*domain.UpstreamGroup
}

func buildGateway(
	gwCfg config.GatewayConfig,
	health ports.HealthMonitor,
	affinityTracker ports.AffinityTracker,
	connPool ports.ConnectionPool,
	selectorFactory *balancer.Factory,
	httpCodec ports.HTTPCodec,
	upstreamTransport ports.UpstreamTransport,
	portMgr *portmgr.Manager,
	log *slog.Logger,
) (*gatewayComponents, error) {
	routes, groups := routesFromConfig(gwCfg.Routes)

	registry := upstreamregistry.New(groups)

	tableBuilder := router.NewBuilder()
	table, err := tableBuilder.Build(routes)
	if err != nil {
		return nil, err
	}

	orchestrator := proxy.New(proxy.Config{
		Routes:    table,
		Registry:  registry,
		Selectors: selectorFactory,
		Pool:      connPool,
		Transport: upstreamTransport,
		Health:    health,
		Affinity:  affinityTracker,
		Logger:    log,
	})

	dispatch, err := tlsdispatch.New(gwCfg.TLS)
	if err != nil {
		return nil, err
	}

	var rlRule *config.RateLimitRuleConfig
	var rlStore ports.RateLimitStore
	if hasMiddleware(gwCfg.Middleware, "rate-limit") {
		rlStore = middleware.NewMemoryRateLimitStore(5 * time.Minute)
		rlRule = &config.RateLimitRuleConfig{KeySource: "ip", RequestsPerMinute: 600, Burst: 600}
	}
	chain := middlewareFromNames(gwCfg.Middleware, log, rlStore, rlRule)

	if err := portMgr.Reserve(gwCfg.Host, gwCfg.Port); err != nil {
		return nil, domain.NewGatewayError(domain.KindBindError, "", "", "", net.JoinHostPort(gwCfg.Host, strconv.Itoa(gwCfg.Port)), err)
	}

	ln, err := listener.New(listener.Config{
		Host:              gwCfg.Host,
		Port:              gwCfg.Port,
		Codec:             httpCodec,
		Chain:             chain,
		Proxy:             orchestrator,
		Logger:            log,
		MaxConnections:    gwCfg.MaxConnections,
		KeepAlive:         gwCfg.KeepAlive,
		KeepAliveTimeout:  gwCfg.KeepAliveTimeout,
		ConnectionTimeout: gwCfg.RequestTimeout,
		WrapListener:      dispatch.WrapListener,
	})
	if err != nil {
		portMgr.Release(gwCfg.Host, gwCfg.Port)
		return nil, err
	}

	return &gatewayComponents{cfg: gwCfg, dispatch: dispatch, listener: ln, groups: groups}, nil
}

func hasMiddleware(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
