package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/cart-store/internal/core/domain"
)

func getMySQLCatalog(t *testing.T) (*MySQLCatalog, *sql.DB) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/rocketshoes?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}

	catalog := NewMySQLCatalog(db)
	if err := catalog.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	return catalog, db
}

func TestMySQLCatalog_SaveAndGet(t *testing.T) {
	catalog, db := getMySQLCatalog(t)
	defer db.Close()

	ctx := context.Background()
	product := domain.Product{ID: 9001, Title: "Tênis Test", Price: 139.9, Image: "t.jpg"}

	if err := catalog.SaveProduct(ctx, product, 4); err != nil {
		t.Fatalf("save: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM inventory WHERE item_id = ?`, product.ID)
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)

	got, err := catalog.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Title != product.Title || got.Price != product.Price || got.Image != product.Image {
		t.Errorf("expected %+v, got %+v", product, got)
	}

	stock, err := catalog.GetStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Amount != 4 {
		t.Errorf("expected stock 4, got %d", stock.Amount)
	}

	// Saving again replaces the stock level
	if err := catalog.SaveProduct(ctx, product, 0); err != nil {
		t.Fatalf("resave: %v", err)
	}
	stock, _ = catalog.GetStock(ctx, product.ID)
	if stock.Amount != 0 {
		t.Errorf("expected stock 0, got %d", stock.Amount)
	}
}

func TestMySQLCatalog_Unknown(t *testing.T) {
	catalog, db := getMySQLCatalog(t)
	defer db.Close()

	ctx := context.Background()
	db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, 9002)
	db.ExecContext(ctx, `DELETE FROM inventory WHERE item_id = ?`, 9002)

	if _, err := catalog.GetProduct(ctx, 9002); !errors.Is(err, domain.ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got: %v", err)
	}
	if _, err := catalog.GetStock(ctx, 9002); !errors.Is(err, domain.ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got: %v", err)
	}
}

func TestMySQLCatalog_NegativeStock(t *testing.T) {
	catalog, db := getMySQLCatalog(t)
	defer db.Close()

	ctx := context.Background()
	product := domain.Product{ID: 9003, Title: "Tênis Negativo", Price: 10}
	if err := catalog.SaveProduct(ctx, product, -3); err != nil {
		t.Fatalf("save: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM inventory WHERE item_id = ?`, product.ID)
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)

	_, err := catalog.GetStock(ctx, product.ID)
	if err == nil {
		t.Fatal("expected error for negative stock")
	}
	if errors.Is(err, domain.ErrUnknownProduct) || errors.Is(err, domain.ErrOutOfStock) {
		t.Errorf("expected a malformed-record error, got: %v", err)
	}
}
