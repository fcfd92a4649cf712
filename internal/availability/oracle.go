// Package availability answers how much of a product may still be added at a
// pickup point. It is a pure read path over live stock; its answers are a
// snapshot and callers must treat them as advisory, not a lock.
package availability

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cart-service/internal/quantity"
	"cart-service/internal/util"
)

// StockSource reads the two overlapping stock records. The bool result
// reports whether a record exists at all.
type StockSource interface {
	PointStock(ctx context.Context, pointID, productID int64) (decimal.Decimal, bool, error)
	GlobalStock(ctx context.Context, productID int64) (decimal.Decimal, bool, error)
}

// Line is one requested quantity to validate.
type Line struct {
	ProductID   int64
	ProductName string
	Qty         decimal.Decimal
	Unit        quantity.Unit
}

// ItemError names one line whose requested quantity exceeds current stock.
// The available figure is for internal consumers (checkout abort lists,
// seller conflict views); the reservation engine never forwards it to
// customers.
type ItemError struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
	Unit        quantity.Unit   `json:"unit"`
}

// CheckResult is the outcome of validating a set of lines.
type CheckResult struct {
	Valid  bool
	Errors []ItemError
}

// Oracle resolves stock with point-level records preferred and the
// seller-wide record as fallback. Unknown products resolve to zero stock:
// unknown means unavailable, never unlimited.
type Oracle struct {
	src    StockSource
	logger *zap.Logger
}

// NewOracle creates an oracle over a stock source.
func NewOracle(src StockSource) *Oracle {
	return &Oracle{src: src, logger: util.GetLogger()}
}

// StockOf returns the currently offered quantity of a product at a point.
// Read faults are logged and resolve to zero.
func (o *Oracle) StockOf(ctx context.Context, pointID, productID int64) decimal.Decimal {
	qty, ok, err := o.src.PointStock(ctx, pointID, productID)
	if err != nil {
		util.AvailabilityLookupsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("Point stock read failed, treating as unavailable",
			zap.Int64("point_id", pointID),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return decimal.Zero
	}
	if ok {
		util.AvailabilityLookupsTotal.WithLabelValues("point").Inc()
		return qty
	}

	qty, ok, err = o.src.GlobalStock(ctx, productID)
	if err != nil {
		util.AvailabilityLookupsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("Global stock read failed, treating as unavailable",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return decimal.Zero
	}
	if ok {
		util.AvailabilityLookupsTotal.WithLabelValues("global").Inc()
		return qty
	}

	util.AvailabilityLookupsTotal.WithLabelValues("none").Inc()
	return decimal.Zero
}

// MaxAddable returns how much more of a product may be added given the
// quantity already held in the cart. Never negative.
func (o *Oracle) MaxAddable(ctx context.Context, pointID, productID int64, alreadyInCart decimal.Decimal) decimal.Decimal {
	remaining := o.StockOf(ctx, pointID, productID).Sub(alreadyInCart)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// CheckMany validates every line's requested quantity against current stock.
// Valid is true iff every requested qty is at or below its stock.
func (o *Oracle) CheckMany(ctx context.Context, pointID int64, lines []Line) CheckResult {
	result := CheckResult{Valid: true}
	for _, line := range lines {
		available := o.StockOf(ctx, pointID, line.ProductID)
		if line.Qty.GreaterThan(available) {
			result.Valid = false
			result.Errors = append(result.Errors, ItemError{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Qty,
				Available:   available,
				Unit:        line.Unit,
			})
		}
	}
	return result
}
