// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all metrics for dutchd using luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Auction metrics
	OfferingsCreated metrics.Counter
	Purchases        metrics.Counter
	PoolsSeeded      metrics.Counter
	Withdrawals      metrics.Counter

	// Rejections by reason (error taxonomy)
	CallsRejected metrics.CounterVec

	// Volume metrics
	PurchaseSize      metrics.Histogram
	ProceedsWithdrawn metrics.Histogram
}

// NewMetrics creates a new metrics instance using luxfi/metric
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New("dutchd")

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.OfferingsCreated = metricsInstance.NewCounter("auction_offerings_created_total", "Total number of offerings created")
	m.Purchases = metricsInstance.NewCounter("auction_purchases_total", "Total number of successful purchases")
	m.PoolsSeeded = metricsInstance.NewCounter("auction_pools_seeded_total", "Total number of liquidity pools seeded")
	m.Withdrawals = metricsInstance.NewCounter("auction_withdrawals_total", "Total number of settlement withdrawals")

	m.CallsRejected = metricsInstance.NewCounterVec(
		"auction_calls_rejected_total",
		"Total number of rejected entry-point calls by reason",
		[]string{"reason"},
	)

	m.PurchaseSize = metricsInstance.NewHistogram(
		"auction_purchase_tokens",
		"Tokens sold per purchase",
		prometheus.ExponentialBuckets(1, 10, 8),
	)

	m.ProceedsWithdrawn = metricsInstance.NewHistogram(
		"auction_proceeds_withdrawn",
		"Currency withdrawn per settlement call",
		prometheus.ExponentialBuckets(1, 10, 8),
	)

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}
