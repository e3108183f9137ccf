// Package metrics owns the Prometheus registry behind /metrics. Every
// dealmap collector registers here rather than on the global default.
package metrics

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dealmap"

type BuildInfo struct {
	Version  string
	Revision string
}

type Config struct {
	Enabled bool
	Build   BuildInfo
}

// Provider is the process-wide registry. A disabled Provider still accepts
// registrations so components need no nil checks; it just is not served.
type Provider struct {
	reg     *prometheus.Registry
	enabled bool
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		buildInfo(cfg.Build),
	)
	return &Provider{reg: reg, enabled: cfg.Enabled}
}

// buildInfo is a constant gauge of 1 carrying the binary's identity.
func buildInfo(b BuildInfo) prometheus.Collector {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Revision == "" {
		b.Revision = "unknown"
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Version and revision of the running dealmap binary.",
		ConstLabels: prometheus.Labels{
			"version":   b.Version,
			"revision":  b.Revision,
			"goversion": runtime.Version(),
		},
	})
	g.Set(1)
	return g
}

// Handler serves the registry, or 404 when metrics are disabled.
func (p *Provider) Handler() http.Handler {
	if !p.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

func (p *Provider) Enabled() bool { return p.enabled }

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// Gatherer exposes the registry for in-process reads.
func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }
