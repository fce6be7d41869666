package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core tag-lifecycle counters. Registered on the default registry; zelfd
// exposes them through the ops server.
var (
	Leases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelf_leases_total",
		Help: "Tag lease attempts by domain and outcome",
	}, []string{"domain", "outcome"})

	Promotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelf_promotions_total",
		Help: "Hold to mainnet promotions by domain",
	}, []string{"domain"})

	PaymentChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelf_payment_checks_total",
		Help: "Payment confirmation checks by network and result",
	}, []string{"network", "result"})

	StorageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelf_storage_ops_total",
		Help: "Storage backend operations by backend, op and result",
	}, []string{"backend", "op", "result"})

	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelf_best_effort_write_failures_total",
		Help: "Secondary-backend writes that failed after the primary committed",
	}, []string{"backend"})
)
