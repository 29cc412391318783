package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return member(a, aggregateTypes) }

// OutboxEventType maps to outbox_events.event_type. order_paid is unique per
// order at the index level.
type OutboxEventType string

const (
	EventOrderPaid              OutboxEventType = "order_paid"
	EventPaymentFailed          OutboxEventType = "payment_failed"
	EventPaymentCancelled       OutboxEventType = "payment_cancelled"
	EventProductVariantsChanged OutboxEventType = "product_variants_changed"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderPaid,
	EventPaymentFailed,
	EventPaymentCancelled,
	EventProductVariantsChanged,
}

func (e OutboxEventType) IsValid() bool { return member(e, outboxEventTypes) }

// OutboxDLQErrorReason says why a row was dead-lettered. The values match
// the outbox_dlq check constraint.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
