package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts order creation outcomes by payment method.
	CheckoutTotal *prometheus.CounterVec
	// PaymentAttemptTotal counts orchestrator attempt outcomes by method.
	PaymentAttemptTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound gateway callback outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// WalletDebitTotal counts wallet check-and-debit outcomes.
	WalletDebitTotal *prometheus.CounterVec
	// SettlementLatency records time from order creation to settlement in milliseconds.
	SettlementLatency *prometheus.HistogramVec
	// SweepExpiredTotal counts orders failed by the gateway timeout sweep.
	SweepExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of order creation outcomes.",
		}, []string{"method", "result"})
		PaymentAttemptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_attempt_total",
			Help:      "Count of payment attempt outcomes per method.",
		}, []string{"method", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed gateway callbacks by outcome.",
		}, []string{"provider", "result"})
		WalletDebitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_debit_total",
			Help:      "Count of wallet debit outcomes.",
		}, []string{"result"})
		SettlementLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_ms",
			Help:      "Time between order creation and settlement in milliseconds.",
			Buckets:   []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
		}, []string{"method"})
		SweepExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_orders_total",
			Help:      "Number of orders moved to FAILED by the gateway timeout sweep.",
		})

		CheckoutTotal = registerOrExisting(reg, CheckoutTotal).(*prometheus.CounterVec)
		PaymentAttemptTotal = registerOrExisting(reg, PaymentAttemptTotal).(*prometheus.CounterVec)
		PaymentWebhookTotal = registerOrExisting(reg, PaymentWebhookTotal).(*prometheus.CounterVec)
		WalletDebitTotal = registerOrExisting(reg, WalletDebitTotal).(*prometheus.CounterVec)
		SettlementLatency = registerOrExisting(reg, SettlementLatency).(*prometheus.HistogramVec)
		SweepExpiredTotal = registerOrExisting(reg, SweepExpiredTotal).(prometheus.Counter)
	})
}
