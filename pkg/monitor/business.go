package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务监控指标
var (
	FeeEstimateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_fee_estimate_total",
		Help: "Fee estimations by chain and result",
	}, []string{"chain", "result"})

	SendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_send_total",
		Help: "Send pipeline outcomes by chain, terminal stage and result",
	}, []string{"chain", "stage", "result"})

	SendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_send_duration_seconds",
		Help:    "Duration of the full send pipeline",
		Buckets: prometheus.DefBuckets,
	}, []string{"chain"})

	HardwareConnectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_hw_connect_total",
		Help: "Hardware device connection attempts",
	}, []string{"transport", "result"})

	KeyMigrationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_key_migration_total",
		Help: "Bulk key encryption / decryption runs",
	}, []string{"direction", "result"})

	PendingRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wallet_pending_tx_records",
		Help: "Signed transactions waiting for confirmations",
	}, []string{"chain"})
)

// Result 把 error 映射成 "ok" / "error" 标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
