package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Bars processed by the engine"},
		[]string{"source"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_total", Help: "Ledger transactions by action and side"},
		[]string{"action", "side"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejections_total", Help: "Entries rejected by the account"},
		[]string{"reason"},
	)
	EquityValue = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "equity_value", Help: "Latest marked-to-market equity"},
	)
)

func init() {
	prometheus.MustRegister(BarsTotal, TradesTotal, RejectionsTotal, EquityValue)
}

// Serve exposes /metrics on addr in the background. Callers own shutdown via the returned server.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
