package ledger

import (
	"errors"
	"time"
)

// Reason tags the cause of a stock movement.
type Reason string

const (
	// ReasonEntry represents inbound stock.
	ReasonEntry Reason = "entry"
	// ReasonSale represents a manually recorded sale.
	ReasonSale Reason = "sale"
	// ReasonSaleFromDocument represents a sale applied from an extracted recap.
	ReasonSaleFromDocument Reason = "sale_from_document"
	// ReasonAdjustment represents a signed manual correction.
	ReasonAdjustment Reason = "adjustment"
)

// Valid reports whether the reason is one of the enumerated tags.
func (r Reason) Valid() bool {
	switch r {
	case ReasonEntry, ReasonSale, ReasonSaleFromDocument, ReasonAdjustment:
		return true
	}
	return false
}

// Product groups variants under a (category, subtype) identity.
type Product struct {
	ID       int64
	Category string
	Subtype  string
	SKUBase  string
	HasBase  bool
	UnitCost float64
}

// Variant is a concrete purchasable unit with its own stock identifier.
type Variant struct {
	ID               int64
	ProductID        int64
	Category         string
	Subtype          string
	Color            string
	Size             string
	SKU              string
	UnitCostOverride *float64
	ProductSKUBase   string
	ProductUnitCost  float64
}

// EffectiveUnitCost resolves the override-then-product-then-zero cost chain.
func (v Variant) EffectiveUnitCost() float64 {
	if v.UnitCostOverride != nil {
		return *v.UnitCostOverride
	}
	return v.ProductUnitCost
}

// Movement is one immutable signed quantity change on a variant.
type Movement struct {
	ID        int64
	VariantID int64
	SKU       string
	Category  string
	Subtype   string
	Color     string
	Size      string
	Qty       int
	Reason    Reason
	At        time.Time
}

// StockRow is one line of the derived stock projection.
type StockRow struct {
	SKU      string
	Category string
	Subtype  string
	Color    string
	Size     string
	Stock    int
	UnitCost float64
	Value    float64
}

// StockSummary aggregates the valued stock projection. Negative stock never
// contributes value to the totals.
type StockSummary struct {
	Rows       []StockRow
	TotalItems int
	TotalUnits int
	TotalValue float64
}

// SalesRow aggregates sold quantities per variant.
type SalesRow struct {
	Category  string
	Subtype   string
	Color     string
	Size      string
	UnitsSold int
	SaleCount int
	UnitCost  float64
	Value     float64
}

// StringPatch is a tri-state optional string: left zero it does not touch the
// stored value, Set with an empty Value clears it.
type StringPatch struct {
	Set   bool
	Value string
}

// FloatPatch is a tri-state optional float: left zero it does not touch the
// stored value.
type FloatPatch struct {
	Set   bool
	Value float64
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	SKU    string
	Reason Reason
	Since  time.Time
	Limit  int
}

// StockFilter narrows the stock projection.
type StockFilter struct {
	Text         string
	CriticalOnly bool
	CriticalAt   int
}

// CreateVariantInput carries everything needed to register a variant.
type CreateVariantInput struct {
	Category        string
	Subtype         string
	Color           string
	Size            string
	SKUBase         StringPatch
	SKUOverride     string
	ProductUnitCost FloatPatch
	VariantUnitCost *float64
}

// UpdateVariantInput renames or reclassifies an existing variant.
type UpdateVariantInput struct {
	OldSKU          string
	NewSKU          string
	Category        string
	Subtype         string
	Color           string
	Size            string
	SKUBase         StringPatch
	VariantUnitCost *float64
}

var (
	// ErrDuplicateSKU indicates the identifier already exists on another variant.
	ErrDuplicateSKU = errors.New("ledger: sku already exists")
	// ErrUnknownSKU indicates no variant matches the identifier.
	ErrUnknownSKU = errors.New("ledger: sku not found")
	// ErrInvalidQuantity indicates a zero movement quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be non zero")
	// ErrInvalidReason indicates a reason outside the enumerated tags.
	ErrInvalidReason = errors.New("ledger: unknown movement reason")
	// ErrProductNotFound indicates no product matches (category, subtype).
	ErrProductNotFound = errors.New("ledger: product not found")
)
