package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmart_orders_placed_total",
			Help: "Orders placed, by payment method",
		},
		[]string{"payment_method"},
	)

	orderRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmart_order_rejections_total",
			Help: "Checkouts refused, by reason",
		},
		[]string{"reason"},
	)

	couponValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmart_coupon_validations_total",
			Help: "Coupon validation attempts, by result",
		},
		[]string{"result"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmart_order_transitions_total",
			Help: "Order status changes, by target status",
		},
		[]string{"status"},
	)

	eventsRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmart_events_relayed_total",
			Help: "Outbox events forwarded to Kafka, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ordersPlacedTotal)
	prometheus.MustRegister(orderRejectionsTotal)
	prometheus.MustRegister(couponValidationsTotal)
	prometheus.MustRegister(orderTransitionsTotal)
	prometheus.MustRegister(eventsRelayedTotal)
}

func RecordOrderPlaced(paymentMethod string) {
	ordersPlacedTotal.WithLabelValues(paymentMethod).Inc()
}

// RecordOrderRejection takes a coarse reason (stock, coupon, payment, lock, other).
func RecordOrderRejection(reason string) {
	orderRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordCouponValidation(result string) {
	couponValidationsTotal.WithLabelValues(result).Inc()
}

func RecordOrderTransition(status string) {
	orderTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordEventRelayed(outcome string) {
	eventsRelayedTotal.WithLabelValues(outcome).Inc()
}
