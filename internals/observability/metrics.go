package observability

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Business metrics untuk pipeline integritas absensi.
var (
	QRTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_tokens_issued_total",
		Help: "Total QR tokens issued by teachers",
	})

	QRTokenRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_token_rejected_total",
		Help: "Total QR token validation failures",
	}, []string{"reason"}) // expired | invalid | clock_skew

	ReplayBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_replay_blocked_total",
		Help: "Total submissions blocked by the nonce replay guard",
	})

	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marked_total",
		Help: "Total attendance records written to the ledger",
	}, []string{"method"}) // qr | socket

	LiveScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_scans_total",
		Help: "Total scan events received over the realtime channel",
	}, []string{"status"}) // Present | Proxy | Duplicate

	FlushBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_flush_batches_total",
		Help: "Total session flush operations that reached the database",
	})

	FlushRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_flush_records_total",
		Help: "Total buffered scans persisted by the flush engine",
	})
)

// MetricsHandler mengekspos /metrics (promhttp via adaptor fasthttp).
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
