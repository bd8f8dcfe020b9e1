package port

import (
	"context"

	"github.com/rl1809/cart-store/internal/core/domain"
)

type CatalogAPI interface {
	// GetStock returns the current stock ceiling for a product
	GetStock(ctx context.Context, productID int) (domain.Stock, error)

	// GetProduct returns the full catalog record for a product
	GetProduct(ctx context.Context, productID int) (domain.Product, error)
}
