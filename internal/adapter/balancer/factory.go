package balancer

import (
	"fmt"
	"sync"

	"github.com/brightloom/gatewire/internal/core/ports"
)

// Factory builds an ports.EndpointSelector by strategy name, registered
// by the runtime at startup so each upstream group's config-declared
// strategy resolves to the right selector (spec.md §4.6, §6).
type Factory struct {
	creators map[string]func(ports.HealthMonitor) ports.EndpointSelector
	monitor  ports.HealthMonitor
	mu       sync.RWMutex
}

func NewFactory(monitor ports.HealthMonitor) *Factory {
	factory := &Factory{
		creators: make(map[string]func(ports.HealthMonitor) ports.EndpointSelector),
		monitor:  monitor,
	}

	factory.Register(StrategyRoundRobin, func(m ports.HealthMonitor) ports.EndpointSelector {
		return NewRoundRobinSelector(m)
	})
	factory.Register(StrategyWeightedRoundRobin, func(m ports.HealthMonitor) ports.EndpointSelector {
		return NewWeightedRoundRobinSelector(m)
	})
	factory.Register(StrategyLeastConnections, func(m ports.HealthMonitor) ports.EndpointSelector {
		return NewLeastConnectionsSelector(m)
	})
	factory.Register(StrategyIPHash, func(m ports.HealthMonitor) ports.EndpointSelector {
		return NewIPHashSelector(m)
	})

	return factory
}

func (f *Factory) Register(name string, creator func(ports.HealthMonitor) ports.EndpointSelector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
}

func (f *Factory) Create(name string) (ports.EndpointSelector, error) {
	f.mu.RLock()
	creator, exists := f.creators[name]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown load balancer strategy: %s", name)
	}

	return creator(f.monitor), nil
}

func (f *Factory) AvailableStrategies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	strategies := make([]string, 0, len(f.creators))
	for name := range f.creators {
		strategies = append(strategies, name)
	}
	return strategies
}
