package config

import (
	"fmt"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// ValidationErrors aggregates every ConfigValidationError found during
// Validate into a single error, per spec.md §6 ("errors are reported as
// a single aggregated message with paths").
type ValidationErrors []*domain.ConfigValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return "invalid configuration:\n  " + strings.Join(parts, "\n  ")
}

var validEnvironments = map[string]bool{"development": true, "production": true, "test": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validProtocols = map[string]bool{"http": true, "https": true}

// Validate checks the invariants spec.md §6 names: port ranges, at least
// one gateway, at least one route per gateway, at least one server per
// route's upstream.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Environment != "" && !validEnvironments[cfg.Environment] {
		errs = append(errs, &domain.ConfigValidationError{
			Path: "environment", Value: cfg.Environment,
			Reason: "must be one of development, production, test",
		})
	}
	if cfg.LogLevel != "" && !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &domain.ConfigValidationError{
			Path: "logLevel", Value: cfg.LogLevel,
			Reason: "must be one of debug, info, warn, error",
		})
	}
	if cfg.Metrics && !isValidPort(cfg.MetricsPort) {
		errs = append(errs, &domain.ConfigValidationError{
			Path: "metricsPort", Value: cfg.MetricsPort, Reason: "must be in [1, 65535]",
		})
	}
	if len(cfg.Gateways) == 0 {
		errs = append(errs, &domain.ConfigValidationError{
			Path: "gateways", Value: nil, Reason: "at least one gateway is required",
		})
	}

	for gi, gw := range cfg.Gateways {
		prefix := fmt.Sprintf("gateways[%d]", gi)
		if !isValidPort(gw.Port) {
			errs = append(errs, &domain.ConfigValidationError{
				Path: prefix + ".port", Value: gw.Port, Reason: "must be in [1, 65535]",
			})
		}
		if len(gw.Routes) == 0 {
			errs = append(errs, &domain.ConfigValidationError{
				Path: prefix + ".routes", Value: nil, Reason: "each gateway requires at least one route",
			})
		}
		if gw.TLS != nil {
			errs = append(errs, validateTLS(prefix+".tls", gw.TLS)...)
		}
		for ri, route := range gw.Routes {
			errs = append(errs, validateRoute(fmt.Sprintf("%s.routes[%d]", prefix, ri), route)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateTLS(path string, tls *TLSConfig) ValidationErrors {
	var errs ValidationErrors
	switch tls.Mode {
	case TLSModeTerminate, TLSModeReencrypt:
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, &domain.ConfigValidationError{
				Path: path, Value: tls.Mode, Reason: "terminate/reencrypt modes require certFile and keyFile",
			})
		}
	case TLSModePassthrough:
		// no certificate material needed; the dispatcher pipes raw bytes.
	default:
		errs = append(errs, &domain.ConfigValidationError{
			Path: path + ".mode", Value: tls.Mode, Reason: "must be one of terminate, passthrough, reencrypt",
		})
	}
	return errs
}

func validateRoute(path string, route RouteConfig) ValidationErrors {
	var errs ValidationErrors
	if route.ID == "" {
		errs = append(errs, &domain.ConfigValidationError{Path: path + ".id", Value: "", Reason: "route id is required"})
	}
	if len(route.Upstream.Servers) == 0 {
		errs = append(errs, &domain.ConfigValidationError{
			Path: path + ".upstream.servers", Value: nil, Reason: "each route requires at least one upstream server",
		})
	}
	for si, server := range route.Upstream.Servers {
		sp := fmt.Sprintf("%s.upstream.servers[%d]", path, si)
		if !isValidPort(server.Port) {
			errs = append(errs, &domain.ConfigValidationError{Path: sp + ".port", Value: server.Port, Reason: "must be in [1, 65535]"})
		}
		if server.Protocol != "" && !validProtocols[server.Protocol] {
			errs = append(errs, &domain.ConfigValidationError{Path: sp + ".protocol", Value: server.Protocol, Reason: "must be http or https"})
		}
	}
	return errs
}

func isValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
