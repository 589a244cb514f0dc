package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// registryPair defaults reg to the global registry and finds the gatherer
// that serves it.
func registryPair(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return reg, g
	}
	return reg, prometheus.DefaultGatherer
}

// register adds c to reg. When an identical collector is already registered
// the existing one is returned so several collectors can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("collector already registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}
