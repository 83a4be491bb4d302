package events

// Topic constants for domain events emitted by the settlement flow.
const (
	TopicOrderCreated  = "order.created"
	TopicOrderSettled  = "order.settled"
	TopicOrderFailed   = "order.failed"
	TopicAttemptFailed = "payment.attempt_failed"
	TopicWalletDebited = "wallet.debited"
	TopicCartCleared   = "cart.cleared"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderSettled,
		TopicOrderFailed,
		TopicAttemptFailed,
		TopicWalletDebited,
		TopicCartCleared,
	}
}
