package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jiorblanc/estoque/internal/sku"
)

// Service coordinates ledger operations. Every mutating operation runs inside
// one transaction.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// UpsertProductType creates the (category, subtype) product or patches it.
// An unset cost patch never overwrites an existing cost; a set skuBase patch
// with an empty value clears the stored base.
func (s *Service) UpsertProductType(ctx context.Context, category, subtype string, skuBase StringPatch, unitCost FloatPatch) (Product, error) {
	category = strings.TrimSpace(category)
	subtype = strings.TrimSpace(subtype)
	if category == "" || subtype == "" {
		return Product{}, errors.New("ledger: category and subtype required")
	}
	if unitCost.Set && unitCost.Value < 0 {
		return Product{}, errors.New("ledger: unit cost must be >= 0")
	}
	if skuBase.Set {
		skuBase.Value = strings.TrimSpace(skuBase.Value)
	}

	var result Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := upsertProduct(ctx, tx, category, subtype, skuBase, unitCost)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	return result, err
}

func upsertProduct(ctx context.Context, tx TxRepository, category, subtype string, skuBase StringPatch, unitCost FloatPatch) (Product, error) {
	p, err := tx.GetProduct(ctx, category, subtype)
	if err == nil {
		if skuBase.Set || unitCost.Set {
			if err := tx.UpdateProduct(ctx, p.ID, skuBase, unitCost); err != nil {
				return Product{}, err
			}
			if skuBase.Set {
				p.SKUBase = skuBase.Value
				p.HasBase = skuBase.Value != ""
			}
			if unitCost.Set {
				p.UnitCost = unitCost.Value
			}
		}
		return p, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return Product{}, err
	}

	p = Product{Category: category, Subtype: subtype}
	if skuBase.Set && skuBase.Value != "" {
		p.SKUBase = skuBase.Value
		p.HasBase = true
	}
	if unitCost.Set {
		p.UnitCost = unitCost.Value
	}
	id, err := tx.InsertProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	return p, nil
}

// CreateVariant resolves or creates the parent product, derives the SKU and
// inserts the variant. The SKU comes from the explicit or inherited base, a
// truncated composite when no base exists, or a sanitized override.
func (s *Service) CreateVariant(ctx context.Context, input CreateVariantInput) (Variant, error) {
	input.Category = strings.TrimSpace(input.Category)
	input.Subtype = strings.TrimSpace(input.Subtype)
	input.Color = strings.TrimSpace(input.Color)
	input.Size = strings.TrimSpace(input.Size)
	if input.Category == "" || input.Subtype == "" {
		return Variant{}, errors.New("ledger: category and subtype required")
	}
	if input.Color == "" || input.Size == "" {
		return Variant{}, errors.New("ledger: color and size required")
	}

	var result Variant
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := upsertProduct(ctx, tx, input.Category, input.Subtype, input.SKUBase, input.ProductUnitCost)
		if err != nil {
			return err
		}

		base := ""
		if input.SKUBase.Set && input.SKUBase.Value != "" {
			base = input.SKUBase.Value
		} else if product.HasBase {
			base = product.SKUBase
		}

		var auto string
		if base != "" {
			auto = sku.Generate(base, input.Color, input.Size)
		} else {
			auto = fmt.Sprintf("%s-%s-%s-%s",
				part(input.Category, 4), part(input.Subtype, 4), part(input.Color, 3), part(input.Size, 4))
		}
		identifier := auto
		if input.SKUOverride != "" {
			identifier = input.SKUOverride
		}
		identifier = sku.Sanitize(identifier)

		v := Variant{
			ProductID:        product.ID,
			Category:         product.Category,
			Subtype:          product.Subtype,
			Color:            input.Color,
			Size:             input.Size,
			SKU:              identifier,
			UnitCostOverride: input.VariantUnitCost,
			ProductSKUBase:   product.SKUBase,
			ProductUnitCost:  product.UnitCost,
		}
		id, err := tx.InsertVariant(ctx, v)
		if err != nil {
			return err
		}
		v.ID = id
		result = v
		return nil
	})
	if err != nil {
		return Variant{}, err
	}
	s.logger.Info("variant created", slog.String("sku", result.SKU))
	return result, nil
}

// part truncates a free-text field for the composite fallback identifier.
func part(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "X"
	}
	runes := []rune(strings.ToUpper(s))
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// RecordMovement appends one immutable movement to a variant's log.
func (s *Service) RecordMovement(ctx context.Context, skuID string, qty int, reason Reason) (Movement, error) {
	if qty == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !reason.Valid() {
		return Movement{}, ErrInvalidReason
	}
	var result Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVariantBySKU(ctx, skuID)
		if err != nil {
			return err
		}
		m := Movement{
			VariantID: v.ID,
			SKU:       v.SKU,
			Qty:       qty,
			Reason:    reason,
			At:        time.Now().UTC(),
		}
		id, err := tx.InsertMovement(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		result = m
		return nil
	})
	return result, err
}

// ApplyClampedSale records a sale of at most the variant's current stock,
// reporting how much of the request could not be fulfilled. The variant row is
// locked for the read-clamp-write sequence so concurrent batches cannot
// oversell the same SKU.
func (s *Service) ApplyClampedSale(ctx context.Context, skuID string, requested int, reason Reason) (applied, shortfall, stockBefore int, err error) {
	if requested <= 0 {
		return 0, 0, 0, ErrInvalidQuantity
	}
	if !reason.Valid() {
		return 0, 0, 0, ErrInvalidReason
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVariantForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		stock, err := tx.SumMovements(ctx, v.ID)
		if err != nil {
			return err
		}
		stockBefore = stock
		applied = requested
		if stock < applied {
			applied = stock
		}
		if applied < 0 {
			applied = 0
		}
		shortfall = requested - applied
		if applied == 0 {
			return nil
		}
		_, err = tx.InsertMovement(ctx, Movement{
			VariantID: v.ID,
			Qty:       -applied,
			Reason:    reason,
			At:        time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return applied, shortfall, stockBefore, nil
}

// UpdateVariant renames or reclassifies a variant, moving it to a new parent
// product when category or subtype changed and removing the old product if it
// became orphaned.
func (s *Service) UpdateVariant(ctx context.Context, input UpdateVariantInput) (Variant, error) {
	input.Category = strings.TrimSpace(input.Category)
	input.Subtype = strings.TrimSpace(input.Subtype)
	input.Color = strings.TrimSpace(input.Color)
	input.Size = strings.TrimSpace(input.Size)
	newSKU := sku.Sanitize(input.NewSKU)
	if newSKU == "" {
		return Variant{}, errors.New("ledger: new sku required")
	}
	if input.Category == "" || input.Subtype == "" {
		return Variant{}, errors.New("ledger: category and subtype required")
	}

	var result Variant
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetVariantBySKU(ctx, input.OldSKU)
		if err != nil {
			return err
		}
		if newSKU != current.SKU {
			if _, err := tx.GetVariantBySKU(ctx, newSKU); err == nil {
				return ErrDuplicateSKU
			} else if !errors.Is(err, ErrUnknownSKU) {
				return err
			}
		}
		product, err := upsertProduct(ctx, tx, input.Category, input.Subtype, input.SKUBase, FloatPatch{})
		if err != nil {
			return err
		}

		updated := current
		updated.SKU = newSKU
		updated.Color = input.Color
		updated.Size = input.Size
		updated.ProductID = product.ID
		updated.Category = product.Category
		updated.Subtype = product.Subtype
		updated.UnitCostOverride = input.VariantUnitCost
		updated.ProductSKUBase = product.SKUBase
		updated.ProductUnitCost = product.UnitCost
		if err := tx.UpdateVariant(ctx, updated); err != nil {
			return err
		}

		if product.ID != current.ProductID {
			if err := deleteIfOrphaned(ctx, tx, current.ProductID); err != nil {
				return err
			}
		}
		result = updated
		return nil
	})
	if err != nil {
		return Variant{}, err
	}
	s.logger.Info("variant updated", slog.String("old_sku", input.OldSKU), slog.String("sku", result.SKU))
	return result, nil
}

// DeleteVariant removes the variant, its movements and mapping entries, and
// the parent product when no other variant references it.
func (s *Service) DeleteVariant(ctx context.Context, skuID string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVariantBySKU(ctx, skuID)
		if err != nil {
			return err
		}
		if err := tx.DeleteVariant(ctx, v.ID); err != nil {
			return err
		}
		return deleteIfOrphaned(ctx, tx, v.ProductID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("variant deleted", slog.String("sku", skuID))
	return nil
}

func deleteIfOrphaned(ctx context.Context, tx TxRepository, productID int64) error {
	count, err := tx.CountVariants(ctx, productID)
	if err != nil {
		return err
	}
	if count == 0 {
		return tx.DeleteProduct(ctx, productID)
	}
	return nil
}

// UpdateSKUBaseBulk stores a new base on the product and regenerates every
// variant SKU from it.
func (s *Service) UpdateSKUBaseBulk(ctx context.Context, category, subtype, newBase string) (int, error) {
	newBase = strings.TrimSpace(newBase)
	if newBase == "" {
		return 0, errors.New("ledger: sku base required")
	}
	regenerated := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, strings.TrimSpace(category), strings.TrimSpace(subtype))
		if err != nil {
			return err
		}
		variants, err := tx.ListProductVariants(ctx, product.ID)
		if err != nil {
			return err
		}
		for _, v := range variants {
			if err := tx.UpdateVariantSKU(ctx, v.ID, sku.Generate(newBase, v.Color, v.Size)); err != nil {
				return err
			}
			regenerated++
		}
		return tx.UpdateProduct(ctx, product.ID, StringPatch{Set: true, Value: newBase}, FloatPatch{})
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("sku base regenerated", slog.String("base", newBase), slog.Int("variants", regenerated))
	return regenerated, nil
}

// UpdateProductCost sets the default unit cost for every variant of the
// product that has no override.
func (s *Service) UpdateProductCost(ctx context.Context, category, subtype string, cost float64) error {
	if cost < 0 {
		return errors.New("ledger: unit cost must be >= 0")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, strings.TrimSpace(category), strings.TrimSpace(subtype))
		if err != nil {
			return err
		}
		return tx.UpdateProduct(ctx, product.ID, StringPatch{}, FloatPatch{Set: true, Value: cost})
	})
}

// ListProducts lists registered product types.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// ListVariants lists registered variants.
func (s *Service) ListVariants(ctx context.Context) ([]Variant, error) {
	return s.repo.ListVariants(ctx)
}

// GetVariant looks up one variant by SKU.
func (s *Service) GetVariant(ctx context.Context, skuID string) (Variant, error) {
	return s.repo.GetVariant(ctx, skuID)
}

// ListMovements lists movement history, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Reason != "" && !filter.Reason.Valid() {
		return nil, ErrInvalidReason
	}
	return s.repo.ListMovements(ctx, filter)
}

// Stock returns the derived stock projection.
func (s *Service) Stock(ctx context.Context, filter StockFilter) ([]StockRow, error) {
	return s.repo.Stock(ctx, filter)
}

// StockSummary returns the valued stock projection with aggregate totals.
// Rows with negative stock contribute zero value to the total.
func (s *Service) StockSummary(ctx context.Context, filter StockFilter) (StockSummary, error) {
	rows, err := s.repo.Stock(ctx, filter)
	if err != nil {
		return StockSummary{}, err
	}
	summary := StockSummary{Rows: rows, TotalItems: len(rows)}
	for _, row := range rows {
		summary.TotalUnits += row.Stock
		if row.Stock > 0 {
			summary.TotalValue += row.Value
		}
	}
	return summary, nil
}

// SalesSummary aggregates sold quantities per variant over sale movements.
func (s *Service) SalesSummary(ctx context.Context, days int) ([]SalesRow, error) {
	return s.repo.SalesSummary(ctx, days)
}
