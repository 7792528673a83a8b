package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(joinRequestsTotal) }

var joinRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tgms_join_requests_total",
		Help: "Join requests handled, by terminal status.",
	},
	[]string{"status"}, // 'approved', 'rejected_already_member', 'failed'
)

func IncJoinRequest(status string) {
	joinRequestsTotal.WithLabelValues(norm(status)).Inc()
}
