package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tristan-jl/replay-memory/errors"
)

// MetricsRegistrar is the part of the registry components need to publish
// their own collectors.
type MetricsRegistrar interface {
	Register(component, name string, c prometheus.Collector) error
	Unregister(component, name string) bool
}

// MetricsRegistry owns a private Prometheus registry holding the core
// metrics, the Go and process collectors, and component collectors keyed
// by "component.name".
type MetricsRegistry struct {
	prom    *prometheus.Registry
	Metrics *Metrics

	mu         sync.Mutex
	components map[string]prometheus.Collector
}

var _ MetricsRegistrar = (*MetricsRegistry)(nil)

func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:       prometheus.NewRegistry(),
		Metrics:    NewMetrics(),
		components: make(map[string]prometheus.Collector),
	}

	r.prom.MustRegister(r.Metrics.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

func (r *MetricsRegistry) CoreMetrics() *Metrics { return r.Metrics }

// Register adds a component collector. Reusing a key is an Invalid error, as
// is a collector whose descriptors clash with one already in Prometheus.
func (r *MetricsRegistry) Register(component, name string, c prometheus.Collector) error {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[key]; ok {
		return errors.WrapInvalid(fmt.Errorf("metric %s already registered for %s", name, component),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	if err := r.prom.Register(c); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if stderrors.As(err, &dup) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register", "prometheus conflict for "+key)
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register "+key)
	}

	r.components[key] = c
	return nil
}

// Unregister removes a component collector and reports whether it was present
func (r *MetricsRegistry) Unregister(component, name string) bool {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[key]
	if !ok || !r.prom.Unregister(c) {
		return false
	}
	delete(r.components, key)
	return true
}
