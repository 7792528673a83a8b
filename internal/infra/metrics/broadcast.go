package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		broadcastSendsTotal,
		groupsDeactivatedTotal,
		slotClaimsTotal,
	)
}

var (
	broadcastSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgms_broadcast_sends_total",
			Help: "Per-group broadcast attempts by outcome.",
		},
		[]string{"result"}, // 'sent', 'failed', 'skipped_slot', 'skipped_disabled'
	)

	groupsDeactivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgms_groups_deactivated_total",
			Help: "Groups deactivated by the broadcast engine.",
		},
		[]string{"reason"}, // 'forbidden', 'failure_threshold'
	)

	slotClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgms_slot_claims_total",
			Help: "Notification slot claim attempts.",
		},
		[]string{"result"}, // 'claimed', 'busy', 'error'
	)
)

func IncBroadcastSend(result string) {
	broadcastSendsTotal.WithLabelValues(norm(result)).Inc()
}

func IncGroupDeactivated(reason string) {
	groupsDeactivatedTotal.WithLabelValues(norm(reason)).Inc()
}

func IncSlotClaim(result string) {
	slotClaimsTotal.WithLabelValues(norm(result)).Inc()
}
