// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfid_scans_total",
		Help: "Accepted RFID scans by resulting action.",
	}, []string{"action"})

	UnknownScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfid_unknown_scans_total",
		Help: "Scans of tags missing from the registry.",
	})

	LedgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rfid_ledger_records",
		Help: "Records currently held in the attendance ledger.",
	})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfid_persistence_failures_total",
		Help: "Failed writes to the backing store.",
	}, []string{"collection"})

	Reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfid_reports_total",
		Help: "Generated attendance reports by kind.",
	}, []string{"kind"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfid_notifications_total",
		Help: "Per-recipient notification deliveries by result.",
	}, []string{"result"})

	Authorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfid_authorization_attempts_total",
		Help: "Chat authorization attempts by decision.",
	}, []string{"decision"})
)
