package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/internal/inventory"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CommitResult lists the products whose stock moved.
type CommitResult struct {
	Committed bool
	Products  []int64
}

// Committer takes a paid order's items out of stock. Each order is
// committed at most once, gated on orders.stock_committed_at.
type Committer struct {
	db   txRunner
	sink notifications.Sink
	logg *logger.Logger
	now  func() time.Time
}

func NewCommitter(db txRunner, sink notifications.Sink, logg *logger.Logger) (*Committer, error) {
	if db == nil {
		return nil, errors.New("db runner required")
	}
	if sink == nil {
		return nil, errors.New("notification sink required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Committer{db: db, sink: sink, logg: logg, now: time.Now}, nil
}

// CommitOrder decrements tracked stock for every line of the order. Stock is
// floored at zero; an oversold line is logged rather than failing the order,
// which is already paid.
func (c *Committer) CommitOrder(ctx context.Context, orderID int64) (*CommitResult, error) {
	ctx = c.logg.WithOrderID(ctx, orderID)
	result := &CommitResult{}
	touched := map[int64]struct{}{}

	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)
		claim := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ? AND stock_committed_at IS NULL", orderID, enums.PaymentStatusPaid).
			Update("stock_committed_at", c.now().UTC())
		if claim.Error != nil {
			return fmt.Errorf("claim order: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return nil
		}
		result.Committed = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		for _, item := range items {
			moved, err := c.decrement(ctx, tx, item)
			if err != nil {
				return err
			}
			if moved {
				touched[item.ProductID] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id := range touched {
		result.Products = append(result.Products, id)
	}
	sort.Slice(result.Products, func(i, j int) bool { return result.Products[i] < result.Products[j] })
	if result.Committed {
		c.notifyLowStock(ctx, result.Products)
		c.logg.Info(c.logg.WithField(ctx, "products", result.Products), "order stock committed")
	}
	return result, nil
}

func (c *Committer) decrement(ctx context.Context, tx *gorm.DB, item models.OrderItem) (bool, error) {
	floored := gorm.Expr("CASE WHEN stock_quantity > ? THEN stock_quantity - ? ELSE 0 END", item.Quantity, item.Quantity)

	var (
		available int
		res       *gorm.DB
	)
	if item.VariantID != nil {
		var variant models.ProductVariant
		if err := tx.First(&variant, "id = ? AND product_id = ?", *item.VariantID, item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.logg.Warn(c.logg.WithField(ctx, "sku", item.SKU), "ordered variant no longer exists")
				return false, nil
			}
			return false, fmt.Errorf("load variant: %w", err)
		}
		available = variant.StockQuantity
		res = tx.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("stock_quantity", floored)
	} else {
		var product models.Product
		if err := tx.First(&product, "id = ?", item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.logg.Warn(c.logg.WithField(ctx, "sku", item.SKU), "ordered product no longer exists")
				return false, nil
			}
			return false, fmt.Errorf("load product: %w", err)
		}
		if product.HasVariants || !product.TrackInventory {
			return false, nil
		}
		available = product.StockQuantity
		res = tx.Model(&models.Product{}).Where("id = ?", product.ID).Update("stock_quantity", floored)
	}
	if res.Error != nil {
		return false, fmt.Errorf("decrement stock for %s: %w", item.SKU, res.Error)
	}
	if item.Quantity > available {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"sku":       item.SKU,
			"ordered":   item.Quantity,
			"available": available,
		}), "order line oversold; stock floored at zero")
	}
	return true, nil
}

// notifyLowStock runs after commit so a notice never describes a rolled back
// decrement.
func (c *Committer) notifyLowStock(ctx context.Context, productIDs []int64) {
	for _, id := range productIDs {
		var (
			product  models.Product
			variants []models.ProductVariant
		)
		err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
			if err := tx.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
				return err
			}
			return tx.WithContext(ctx).Where("product_id = ?", id).Find(&variants).Error
		})
		if err != nil {
			c.logg.Warn(c.logg.WithField(c.logg.WithProductID(ctx, id), "error", err.Error()), "stock level check failed")
			continue
		}
		level := inventory.StockStatus(product, variants)
		if level == enums.StockLevelInStock {
			continue
		}
		c.sink.Notify(ctx, notifications.New(
			notifications.KindLowStock,
			notifications.LevelWarning,
			fmt.Sprintf("%s is %s (%d left)", product.Name, level, inventory.TotalStock(product, variants)),
			map[string]any{"product_id": product.ID, "sku": product.SKU, "stock_level": string(level)},
		))
	}
}
