package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(platformCallsTotal) }

var platformCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tgms_platform_calls_total",
		Help: "Messaging platform API calls by method and result.",
	},
	[]string{"method", "result"}, // result: 'ok', 'error', 'forbidden'
)

func IncPlatformCall(method, result string) {
	platformCallsTotal.WithLabelValues(method, norm(result)).Inc()
}
