package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Name:      "chain_height",
		Help:      "Length of the local node's current best fork.",
	})

	ChainTips = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Name:      "chain_tips",
		Help:      "Number of known competing chain tips.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Name:      "peers_connected",
		Help:      "Number of peers known to this node.",
	})

	MempoolPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Name:      "mempool_pending",
		Help:      "Transactions seen but not yet on the best fork.",
	})

	BlocksMined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Name:      "blocks_mined_total",
		Help:      "Total blocks this node successfully mined.",
	})

	BlocksIntegrated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Name:      "blocks_integrated_total",
		Help:      "Foreign blocks integrated, by outcome.",
	}, []string{"result"})

	ForkSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Name:      "fork_switches_total",
		Help:      "Times the resolved best tip changed to a different fork.",
	})

	TransactionsBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Name:      "transactions_broadcast_total",
		Help:      "Transactions created and broadcast by this node.",
	})

	UptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Name:      "uptime_seconds",
		Help:      "Node uptime in seconds.",
	})
)

func init() {
	prometheus.MustRegister(
		ChainHeight,
		ChainTips,
		PeersConnected,
		MempoolPending,
		BlocksMined,
		BlocksIntegrated,
		ForkSwitches,
		TransactionsBroadcast,
		UptimeSeconds,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
