package domain

import "time"

// StockUpdateEvent describes the outcome of one adjustment. Only successful
// commits are broadcast; failed events are returned to the caller directly.
type StockUpdateEvent struct {
	ProductID     string    `json:"product_id"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	NewStockLevel int       `json:"new_stock_level"`
	Timestamp     time.Time `json:"timestamp"`
}
