package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

// MySQLLedger is the alternative Ledger backend, selected with
// database.driver = "mysql".
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (m *MySQLLedger) GetStockLevel(ctx context.Context, productID string) (int, error) {
	var stock int
	err := m.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE product_id = ?`, productID,
	).Scan(&stock)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (m *MySQLLedger) UpdateStockLevel(ctx context.Context, productID string, delta int, transactionID string) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?
		WHERE product_id = ? AND stock + ? >= 0`,
		delta, productID, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		exists, existsErr := m.ProductExists(ctx, productID)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, domain.ErrProductNotFound
		}
		return 0, domain.ErrInsufficientStock
	}

	var newLevel int
	err = tx.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE product_id = ?`, productID,
	).Scan(&newLevel)
	if err != nil {
		return 0, fmt.Errorf("read updated stock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_transactions (product_id, quantity_change, transaction_id, created_at)
		VALUES (?, ?, ?, NOW())`,
		productID, delta, transactionID,
	)
	if err != nil {
		return 0, fmt.Errorf("log stock transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return newLevel, nil
}

func (m *MySQLLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		product domain.Product
		price   string
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT product_id, name, price, stock FROM products WHERE product_id = ?`,
		productID,
	).Scan(&product.ID, &product.Name, &price, &product.Stock)

	if errors.Is(err, sql.ErrNoRows) {
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

func (m *MySQLLedger) ProductExists(ctx context.Context, productID string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE product_id = ?`, productID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query product existence: %w", err)
	}
	return count > 0, nil
}
