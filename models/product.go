package models

import (
	"context"
	"errors"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Product is catalog data: read by pricing and inventory queries, mutated
// only by fulfillment stock decrements. CurrentStock never goes negative;
// that is enforced by pre-decrement validation under row lock, not by a
// database clamp.
type Product struct {
	ID           string          `gorm:"primary_key;size:36" json:"id"`
	OrgId        string          `gorm:"size:36;index;not null" json:"org_id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	NameKey      string          `gorm:"size:255;index;not null" json:"-"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.NameKey = utils.NormalizeName(p.Name)
	return nil
}

// ResolveProductByName resolves a product by normalized exact name.
// Returns nil without error when absent; callers decide whether absence is
// fatal.
func ResolveProductByName(ctx context.Context, tx *gorm.DB, name string) (*Product, error) {
	var product Product
	err := tx.WithContext(ctx).
		Where("name_key = ?", utils.NormalizeName(name)).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// LockProducts fetches the given products FOR UPDATE inside the caller's
// transaction so concurrent fulfillments cannot both observe pre-decrement
// stock.
func LockProducts(ctx context.Context, tx *gorm.DB, productIds []string) (map[string]*Product, error) {
	var products []*Product
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", productIds).
		Find(&products).Error; err != nil {
		return nil, err
	}
	locked := make(map[string]*Product, len(products))
	for _, p := range products {
		locked[p.ID] = p
	}
	return locked, nil
}

// ValidateProductStock checks that the locked product can cover outQty.
func ValidateProductStock(product *Product, outQty decimal.Decimal) error {
	if product.CurrentStock.LessThan(outQty) {
		return &utils.InsufficientStockError{
			ProductName: product.Name,
			Requested:   utils.FormatQty(outQty),
			Available:   utils.FormatQty(product.CurrentStock),
		}
	}
	return nil
}

// DecrementProductStock applies a validated stock decrement. Must run inside
// the same transaction that locked the row.
func DecrementProductStock(ctx context.Context, tx *gorm.DB, productId string, quantity decimal.Decimal) error {
	return tx.WithContext(ctx).
		Exec("UPDATE products SET current_stock = current_stock - ? WHERE id = ?", quantity, productId).Error
}
