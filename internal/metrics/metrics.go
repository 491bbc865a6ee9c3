// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodshare_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodshare_tickets_issued_total",
			Help: "Handoff tickets issued",
		},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodshare_ticket_redemptions_total",
			Help: "Ticket scans by outcome",
		},
		[]string{"outcome"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodshare_settlements_total",
			Help: "Settlement runs by outcome",
		},
		[]string{"outcome"},
	)

	outboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodshare_outbox_deliveries_total",
			Help: "Outbox delivery attempts by topic and status",
		},
		[]string{"topic", "status"},
	)

	donationKg = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foodshare_donation_food_kg",
			Help:    "Kilograms of food per recorded donation",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)
)

// Reservation counts one reservation attempt.
func Reservation(outcome string) { reservations.WithLabelValues(outcome).Inc() }

// TicketIssued counts one issued ticket.
func TicketIssued() { ticketsIssued.Inc() }

// Redemption counts one scan.
func Redemption(outcome string) { redemptions.WithLabelValues(outcome).Inc() }

// Settlement counts one finalize call.
func Settlement(outcome string) { settlements.WithLabelValues(outcome).Inc() }

// OutboxDelivery counts one relay attempt.
func OutboxDelivery(topic, status string) { outboxDeliveries.WithLabelValues(topic, status).Inc() }

// DonationRecorded observes the weight of a new donation.
func DonationRecorded(kg float64) { donationKg.Observe(kg) }
