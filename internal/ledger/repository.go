package ledger

import (
	"context"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListProducts(ctx context.Context) ([]Product, error)
	ListVariants(ctx context.Context) ([]Variant, error)
	GetVariant(ctx context.Context, sku string) (Variant, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	Stock(ctx context.Context, filter StockFilter) ([]StockRow, error)
	SalesSummary(ctx context.Context, days int) ([]SalesRow, error)
}

// TxRepository exposes the operations available inside one transaction. Every
// mutating ledger operation runs through it so multi-statement sequences are
// all-or-nothing.
type TxRepository interface {
	GetProduct(ctx context.Context, category, subtype string) (Product, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, skuBase StringPatch, unitCost FloatPatch) error
	DeleteProduct(ctx context.Context, id int64) error
	CountVariants(ctx context.Context, productID int64) (int64, error)
	ListProductVariants(ctx context.Context, productID int64) ([]Variant, error)

	GetVariantBySKU(ctx context.Context, sku string) (Variant, error)
	GetVariantForUpdate(ctx context.Context, sku string) (Variant, error)
	InsertVariant(ctx context.Context, v Variant) (int64, error)
	UpdateVariant(ctx context.Context, v Variant) error
	UpdateVariantSKU(ctx context.Context, id int64, sku string) error
	DeleteVariant(ctx context.Context, id int64) error

	SumMovements(ctx context.Context, variantID int64) (int, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}
