package schema

import "time"

// OrderRequest represents one broker-neutral order submission. Reference tags
// the owning strategy for correlation on the way back.
type OrderRequest struct {
	Instrument string    `json:"instrument"`
	Gateway    string    `json:"gateway"`
	Direction  Direction `json:"direction"`
	Offset     Offset    `json:"offset"`
	Price      float64   `json:"price"`
	Volume     int64     `json:"volume"`
	Reference  string    `json:"reference"`
	Timestamp  time.Time `json:"timestamp"`
}

// CancelRequest asks the gateway to withdraw a live order.
type CancelRequest struct {
	OrderID    string `json:"orderId"`
	Instrument string `json:"instrument"`
	Gateway    string `json:"gateway"`
}
