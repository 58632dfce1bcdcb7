package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order is the order/invoice aggregate. Created once by BuildOrder; after
// that only status, payment and tax fields mutate. Never physically deleted.
//
// Committed invariants: TotalAmount = SubtotalAmount + TaxAmount and
// BalanceAmount = TotalAmount - PaidAmount.
type Order struct {
	ID             string          `gorm:"primary_key;size:36" json:"id"`
	InvoiceNumber  int64           `gorm:"uniqueIndex;not null" json:"invoice_number"`
	DisplayNumber  string          `gorm:"size:50;index;not null" json:"display_number"`
	Intent         Intent          `gorm:"size:50;not null" json:"intent"`
	Status         OrderStatus     `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	SubtotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TaxSummary     string          `gorm:"size:100;default:null" json:"tax_summary"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	BalanceAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	DueDate        *time.Time      `gorm:"default:null" json:"due_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	PartyId        string          `gorm:"size:36;index;not null" json:"party_id"`
	OrgId          string          `gorm:"size:36;index;not null" json:"org_id"`
	Items          []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
}

// OrderItem is a line of an order: product reference, quantity and snapshots
// of the product name and unit price at creation time. Immutable once
// persisted.
type OrderItem struct {
	ID          string          `gorm:"primary_key;size:36" json:"id"`
	OrderId     string          `gorm:"size:36;index;not null" json:"order_id"`
	ProductId   string          `gorm:"size:36;index;not null" json:"product_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (item *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

// NewOrder is the builder input assembled from a classified-intent payload.
type NewOrder struct {
	Intent    Intent
	PartyName string
	DueDate   *time.Time
	LineItems []NewOrderLineItem
}

type NewOrderLineItem struct {
	ProductName string
	Quantity    decimal.Decimal
}

// BuildOrder assembles a fully populated, not-yet-persisted order aggregate:
// line quantities validated positive, party resolved with auto-create
// allowed, organization fixed to the configured default, every line item's
// product resolved (any miss aborts the whole build), subtotal and tax
// computed, invoice number assigned.
// Persistence is the caller's responsibility, inside its own transaction.
func BuildOrder(ctx context.Context, tx *gorm.DB, defaults config.Defaults, input *NewOrder) (*Order, error) {
	for _, line := range input.LineItems {
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", utils.ErrorInvalidPayload, line.ProductName)
		}
	}

	partyName := strings.TrimSpace(input.PartyName)
	if partyName == "" {
		partyName = defaults.CustomerName
	}
	party, err := ResolvePartyByName(ctx, tx, partyName, true, defaults)
	if err != nil {
		return nil, err
	}

	org, err := ResolveOrganizationByName(ctx, tx, defaults.OrganizationName)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: default organization %q is missing", utils.ErrorFatalConfig, defaults.OrganizationName)
	}

	subtotal := decimal.Zero
	items := make([]OrderItem, 0, len(input.LineItems))
	for _, line := range input.LineItems {
		product, err := ResolveProductByName(ctx, tx, line.ProductName)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, &utils.ProductNotFoundError{Name: line.ProductName}
		}
		items = append(items, OrderItem{
			ProductId:   product.ID,
			Description: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.UnitPrice,
		})
		subtotal = subtotal.Add(line.Quantity.Mul(product.UnitPrice))
	}
	subtotal = utils.Round2(subtotal)

	tax, err := TaxForCountry(ctx, tx, org.Country, subtotal)
	if err != nil {
		return nil, err
	}

	invoiceNumber, err := NextInvoiceNumber(ctx, tx)
	if err != nil {
		return nil, err
	}

	order := Order{
		InvoiceNumber:  invoiceNumber,
		DisplayNumber:  DisplayNumber(invoiceNumber),
		Intent:         input.Intent,
		Status:         OrderStatusPending,
		SubtotalAmount: subtotal,
		TaxAmount:      tax.TaxAmount,
		TaxSummary:     fmt.Sprintf("%s %s%%", tax.TaxType, tax.Rate.String()),
		TotalAmount:    tax.Total,
		PaidAmount:     decimal.Zero,
		BalanceAmount:  tax.Total,
		DueDate:        input.DueDate,
		PartyId:        party.ID,
		OrgId:          org.ID,
		Items:          items,
	}
	return &order, nil
}

// GetOrderByDisplayNumber resolves an order by its display number,
// case-insensitively, with items preloaded. Returns nil without error when
// absent. forUpdate locks the order row for the caller's transaction.
func GetOrderByDisplayNumber(ctx context.Context, tx *gorm.DB, displayNumber string, forUpdate bool) (*Order, error) {
	dbCtx := tx.WithContext(ctx).Preload("Items").
		Where("UPPER(display_number) = ?", strings.ToUpper(strings.TrimSpace(displayNumber)))
	if forUpdate {
		dbCtx = dbCtx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order Order
	if err := dbCtx.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Fulfill marks the order DELIVERED and decrements stock for every line item.
// Quantities are aggregated per product first, so a product appearing on
// several line items is validated against the combined requirement. All
// products are locked and validated before any decrement; insufficiency
// anywhere fails the whole call with no stock change, leaving the caller to
// roll back.
func (order *Order) Fulfill(ctx context.Context, tx *gorm.DB) error {
	required := make(map[string]decimal.Decimal, len(order.Items))
	names := make(map[string]string, len(order.Items))
	productIds := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if _, seen := required[item.ProductId]; !seen {
			productIds = append(productIds, item.ProductId)
			names[item.ProductId] = item.Description
		}
		required[item.ProductId] = required[item.ProductId].Add(item.Quantity)
	}

	if len(productIds) > 0 {
		locked, err := LockProducts(ctx, tx, productIds)
		if err != nil {
			return err
		}
		for _, productId := range productIds {
			product, ok := locked[productId]
			if !ok {
				return &utils.ProductNotFoundError{Name: names[productId]}
			}
			if err := ValidateProductStock(product, required[productId]); err != nil {
				return err
			}
		}
		for _, productId := range productIds {
			if err := DecrementProductStock(ctx, tx, productId, required[productId]); err != nil {
				return err
			}
		}
	}

	order.Status = OrderStatusDelivered
	return tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", order.ID).
		Update("status", order.Status).Error
}

// MarkInvoiced transitions the order to INVOICED. Document rendering happens
// outside the transaction; this only mutates status.
func (order *Order) MarkInvoiced(ctx context.Context, tx *gorm.DB) error {
	order.Status = OrderStatusInvoiced
	return tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", order.ID).
		Update("status", order.Status).Error
}

// ApplyPayment adds amount to PaidAmount, recomputes BalanceAmount, and moves
// status to PAID when the balance reaches zero, PARTIALLY_PAID otherwise.
// The caller short-circuits already-PAID orders before getting here.
func (order *Order) ApplyPayment(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: payment amount must be positive", utils.ErrorInvalidPayload)
	}

	order.PaidAmount = order.PaidAmount.Add(amount)
	order.BalanceAmount = order.TotalAmount.Sub(order.PaidAmount)
	if order.BalanceAmount.LessThanOrEqual(decimal.Zero) {
		order.Status = OrderStatusPaid
	} else {
		order.Status = OrderStatusPartiallyPaid
	}

	return tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"paid_amount":    order.PaidAmount,
			"balance_amount": order.BalanceAmount,
			"status":         order.Status,
		}).Error
}

// ProductStockByName returns the current stock of a single named product.
type ProductStock struct {
	ProductName string
	Stock       decimal.Decimal
}

// StockForOrder reports current stock for every product referenced by the
// order's line items. Pure read.
func StockForOrder(ctx context.Context, tx *gorm.DB, order *Order) ([]ProductStock, error) {
	stocks := make([]ProductStock, 0, len(order.Items))
	for _, item := range order.Items {
		var product Product
		if err := tx.WithContext(ctx).Where("id = ?", item.ProductId).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		stocks = append(stocks, ProductStock{ProductName: product.Name, Stock: product.CurrentStock})
	}
	return stocks, nil
}

// StockForProducts is the CHECK_INVENTORY read: current stock per named
// product, no locking, no mutation.
func StockForProducts(ctx context.Context, tx *gorm.DB, names []string) ([]ProductStock, error) {
	stocks := make([]ProductStock, 0, len(names))
	for _, name := range names {
		product, err := ResolveProductByName(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, &utils.ProductNotFoundError{Name: name}
		}
		stocks = append(stocks, ProductStock{ProductName: product.Name, Stock: product.CurrentStock})
	}
	return stocks, nil
}
