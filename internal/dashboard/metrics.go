package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_requests_total",
		Help: "Total number of dashboard HTTP requests",
	}, []string{"path", "status"})

	snapshotLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_snapshot_loads_total",
		Help: "Total number of snapshot loads from the store",
	})
)
