package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stock",
		Name:      "adjustments_total",
		Help:      "Stock adjustments by outcome.",
	}, []string{"result"})

	eventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stock",
		Name:      "events_published_total",
		Help:      "Stock-change events published to subscribers.",
	})

	lowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stock",
		Name:      "low_stock_alerts_total",
		Help:      "Low-stock warnings emitted by the adjust pipeline.",
	})

	reservationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stock",
		Name:      "reservations_active",
		Help:      "Reservations currently held, including expired ones not yet swept.",
	})
)
