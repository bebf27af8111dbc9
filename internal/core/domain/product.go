package domain

import "github.com/shopspring/decimal"

// Product mirrors the ledger's product row.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}
