package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

// PostgresLedger is the primary Ledger backend.
//
// Schema:
//
//	products(product_id TEXT PRIMARY KEY, name TEXT, price NUMERIC, stock INT)
//	stock_transactions(product_id TEXT, quantity_change INT, transaction_id TEXT, created_at TIMESTAMPTZ)
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (p *PostgresLedger) GetStockLevel(ctx context.Context, productID string) (int, error) {
	var stock int
	err := p.pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE product_id = $1`, productID,
	).Scan(&stock)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

// UpdateStockLevel applies the delta as a single conditional UPDATE so the
// read-modify-write is race-free at the storage layer even without the
// in-process lock, and records the movement in the audit table within the
// same transaction.
func (p *PostgresLedger) UpdateStockLevel(ctx context.Context, productID string, delta int, transactionID string) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var newLevel int
	err = tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $1
		WHERE product_id = $2 AND stock + $1 >= 0
		RETURNING stock`,
		delta, productID,
	).Scan(&newLevel)

	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := p.ProductExists(ctx, productID)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, domain.ErrProductNotFound
		}
		return 0, domain.ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_transactions (product_id, quantity_change, transaction_id, created_at)
		VALUES ($1, $2, $3, NOW())`,
		productID, delta, transactionID,
	)
	if err != nil {
		return 0, fmt.Errorf("log stock transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return newLevel, nil
}

func (p *PostgresLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		product domain.Product
		price   string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT product_id, name, price::text, stock FROM products WHERE product_id = $1`,
		productID,
	).Scan(&product.ID, &product.Name, &price, &product.Stock)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	return &product, nil
}

func (p *PostgresLedger) ProductExists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query product existence: %w", err)
	}
	return exists, nil
}
