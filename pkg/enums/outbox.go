package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSellerPayout OutboxAggregateType = "seller_payout"
	AggregateSeller       OutboxAggregateType = "seller"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateOrder, AggregateSellerPayout, AggregateSeller}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderPaid              OutboxEventType = "order_paid"
	EventOrderPaymentFailed     OutboxEventType = "order_payment_failed"
	EventSellerPayoutCompleted  OutboxEventType = "seller_payout_completed"
	EventSellerPayoutFailed     OutboxEventType = "seller_payout_failed"
	EventSellerAccountActivated OutboxEventType = "seller_account_activated"
)

var eventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventSellerPayoutCompleted,
	EventSellerPayoutFailed,
	EventSellerAccountActivated,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}
