package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RPCCollector holds the CascadeService metrics: request counts and
// latencies per method, plus the size of the chain store.
type RPCCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	StoredChains prometheus.Gauge
}

// NewRPCCollector registers the RPC metrics on reg, or on the default
// registry when reg is nil.
func NewRPCCollector(reg prometheus.Registerer) (*RPCCollector, error) {
	reg, gatherer := registryPair(reg)
	c := &RPCCollector{gatherer: gatherer}
	var err error
	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rfcascade_rpc_requests_total",
		Help: "Handled RPCs by service, method and gRPC status code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rfcascade_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: prometheus.ExponentialBucketsRange(0.0005, 5, 10),
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}
	if c.StoredChains, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rfcascade_stored_chains",
		Help: "Chains currently held by the chain store.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RPCCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil || info == nil {
			return resp, err
		}
		service, method := SplitMethod(info.FullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RPCCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetStoredChains updates the chain store gauge.
func (c *RPCCollector) SetStoredChains(n int) {
	if c == nil || c.StoredChains == nil {
		return
	}
	c.StoredChains.Set(float64(n))
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method").
// Missing parts come back as "unknown".
func SplitMethod(fullMethod string) (string, string) {
	svc, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "unknown", "unknown"
	}
	if dot := strings.LastIndexByte(svc, '.'); dot >= 0 {
		svc = svc[dot+1:]
	}
	return orUnknown(svc), orUnknown(method)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
