package schema

// Direction identifies the side of an order or fill.
type Direction string

const (
	// DirectionLong marks a buy-side order or fill.
	DirectionLong Direction = "LONG"
	// DirectionShort marks a sell-side order or fill.
	DirectionShort Direction = "SHORT"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Offset qualifies whether an order opens or closes a position, independent of direction.
type Offset string

const (
	// OffsetOpen establishes new exposure.
	OffsetOpen Offset = "OPEN"
	// OffsetClose reduces existing exposure.
	OffsetClose Offset = "CLOSE"
)

// OrderStatus tracks the lifecycle state of a submitted order.
type OrderStatus string

const (
	// StatusSubmitting marks an order sent but not yet acknowledged.
	StatusSubmitting OrderStatus = "SUBMITTING"
	// StatusNotTraded marks an acknowledged order with no fills.
	StatusNotTraded OrderStatus = "NOT_TRADED"
	// StatusPartTraded marks an order with partial fills outstanding.
	StatusPartTraded OrderStatus = "PART_TRADED"
	// StatusAllTraded marks a fully filled order.
	StatusAllTraded OrderStatus = "ALL_TRADED"
	// StatusCancelled marks a cancelled order.
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusRejected marks an order rejected by the venue.
	StatusRejected OrderStatus = "REJECTED"
)

// IsActive reports whether the status is non-terminal.
func (s OrderStatus) IsActive() bool {
	switch s {
	case StatusSubmitting, StatusNotTraded, StatusPartTraded:
		return true
	default:
		return false
	}
}

// Interval identifies a bar aggregation window.
type Interval string

const (
	// IntervalMinute aggregates one-minute bars.
	IntervalMinute Interval = "1m"
	// IntervalHour aggregates one-hour bars.
	IntervalHour Interval = "1h"
	// IntervalDaily aggregates daily bars.
	IntervalDaily Interval = "1d"
)
