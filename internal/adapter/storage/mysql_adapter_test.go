package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stock?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func seedMySQLProduct(t *testing.T, db *sql.DB, productID string, stock int) {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO products (product_id, name, price, stock)
		VALUES (?, 'Test Product', 9.99, ?)
		ON DUPLICATE KEY UPDATE stock = VALUES(stock)`,
		productID, stock,
	)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM stock_transactions WHERE product_id = ?`, productID)
		db.ExecContext(ctx, `DELETE FROM products WHERE product_id = ?`, productID)
	})
}

func TestMySQLUpdateStockLevel(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ledger := NewMySQLLedger(db)
	ctx := context.Background()
	seedMySQLProduct(t, db, "my-test-item", 10)

	newLevel, err := ledger.UpdateStockLevel(ctx, "my-test-item", -4, "tx-1")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if newLevel != 6 {
		t.Errorf("expected level 6, got %d", newLevel)
	}
}

func TestMySQLUpdateStockLevelInsufficient(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ledger := NewMySQLLedger(db)
	ctx := context.Background()
	seedMySQLProduct(t, db, "my-test-item", 3)

	_, err := ledger.UpdateStockLevel(ctx, "my-test-item", -5, "tx-2")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	level, err := ledger.GetStockLevel(ctx, "my-test-item")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if level != 3 {
		t.Errorf("expected unchanged level 3, got %d", level)
	}
}

func TestMySQLUnknownProduct(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ledger := NewMySQLLedger(db)
	ctx := context.Background()

	if _, err := ledger.GetStockLevel(ctx, "my-no-such-item"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}

	exists, err := ledger.ProductExists(ctx, "my-no-such-item")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("expected product to not exist")
	}
}
