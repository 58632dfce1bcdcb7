package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/models"
	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IntentPayload is the engine's sole input: the classified intent plus the
// optional fields the interpreter extracted. Single-use command object, never
// persisted and never mutated by the engine.
type IntentPayload struct {
	Intent                models.Intent     `json:"intent" validate:"required"`
	PartyName             string            `json:"party_name,omitempty"`
	OrderNumber           string            `json:"order_number,omitempty"`
	TargetProductName     string            `json:"target_product_name,omitempty"`
	DueDate               string            `json:"due_date,omitempty"`
	CustomerPaymentAmount *decimal.Decimal  `json:"customer_payment_amount,omitempty"`
	LineItems             []PayloadLineItem `json:"line_items,omitempty" validate:"dive"`
	Summary               string            `json:"summary,omitempty"`
}

// PayloadLineItem keeps the interpreter's wire field name product_quantity.
type PayloadLineItem struct {
	ProductName string          `json:"product_name" validate:"required"`
	Quantity    decimal.Decimal `json:"product_quantity"`
}

// ProcessResult is the response contract for every intent: a human-readable
// message suitable for direct display, plus the affected order's display
// number when one exists. No structured error codes cross this boundary.
type ProcessResult struct {
	OrderReference *string `json:"order_reference"`
	Message        string  `json:"message"`
}

// Engine dispatches classified intents onto the order lifecycle. Default
// customer/organization names are injected once at construction.
type Engine struct {
	defaults config.Defaults
	logger   *logrus.Logger
	validate *validator.Validate
}

func NewEngine(defaults config.Defaults, logger *logrus.Logger) *Engine {
	return &Engine{
		defaults: defaults,
		logger:   logger,
		validate: validator.New(),
	}
}

// Process executes one classified intent. Errors raised inside a lifecycle
// transaction abort it and are converted to a user-facing message here; none
// propagate past the engine.
func (e *Engine) Process(ctx context.Context, payload *IntentPayload) ProcessResult {
	if err := e.validate.Struct(payload); err != nil {
		return ProcessResult{Message: "The request is missing required fields and could not be processed."}
	}

	switch payload.Intent {
	case models.IntentCreateSalesOrder:
		return e.createSalesOrder(ctx, payload)
	case models.IntentCreateFulfillment:
		return e.createFulfillment(ctx, payload)
	case models.IntentCreateInvoice:
		return e.createInvoice(ctx, payload)
	case models.IntentRecordPayment:
		return e.recordPayment(ctx, payload)
	case models.IntentCheckInventory:
		return e.checkInventory(ctx, payload)
	case models.IntentStatusCheck:
		return e.statusCheck(ctx, payload)
	case models.IntentUnknown:
		return ProcessResult{Message: "Sorry, I could not understand that request."}
	default:
		msg := "Functionality not implemented."
		if strings.TrimSpace(payload.OrderNumber) != "" {
			msg = fmt.Sprintf("Functionality not implemented for order %s.", strings.TrimSpace(payload.OrderNumber))
		}
		return ProcessResult{Message: msg}
	}
}

func (e *Engine) newOrderInput(payload *IntentPayload) *models.NewOrder {
	input := models.NewOrder{
		Intent:    payload.Intent,
		PartyName: payload.PartyName,
		DueDate:   parseDueDate(payload.DueDate),
	}
	for _, line := range payload.LineItems {
		input.LineItems = append(input.LineItems, models.NewOrderLineItem{
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
		})
	}
	return &input
}

// parseDueDate accepts the interpreter's date forms; anything unparseable is
// treated as no due date rather than a failure.
func parseDueDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func (e *Engine) createSalesOrder(ctx context.Context, payload *IntentPayload) ProcessResult {
	db := config.GetDB()
	tx := db.Begin()

	order, err := models.BuildOrder(ctx, tx, e.defaults, e.newOrderInput(payload))
	if err != nil {
		tx.Rollback()
		return e.failure(ctx, "createSalesOrder", payload, fmt.Sprintf("Issue creating order: %s.", userMessage(err)), err)
	}
	if err := tx.WithContext(ctx).Create(order).Error; err != nil {
		tx.Rollback()
		return e.failure(ctx, "createSalesOrder", payload, "Issue creating order: it could not be saved.", err)
	}
	if err := tx.Commit().Error; err != nil {
		return e.failure(ctx, "createSalesOrder", payload, "Issue creating order: it could not be saved.", err)
	}

	return ProcessResult{
		OrderReference: &order.DisplayNumber,
		Message: fmt.Sprintf("Created a sales order with order # %s. Use this order number for further interactions.",
			order.DisplayNumber),
	}
}

// resolveOrCreateOrder returns the order a lifecycle intent addresses. An
// absent order number synthesizes a new order from the payload inside the
// caller's transaction; a present one is looked up case-insensitively with a
// row lock. The payload itself is never rewritten: callers work with the
// returned handle.
func (e *Engine) resolveOrCreateOrder(ctx context.Context, tx *gorm.DB, payload *IntentPayload) (*models.Order, bool, error) {
	orderNumber := strings.TrimSpace(payload.OrderNumber)
	if orderNumber == "" {
		order, err := models.BuildOrder(ctx, tx, e.defaults, e.newOrderInput(payload))
		if err != nil {
			return nil, false, err
		}
		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return nil, false, err
		}
		return order, true, nil
	}

	order, err := models.GetOrderByDisplayNumber(ctx, tx, orderNumber, true)
	if err != nil {
		return nil, false, err
	}
	if order == nil {
		return nil, false, fmt.Errorf("%w: order %s", utils.ErrorRecordNotFound, orderNumber)
	}
	return order, false, nil
}

func (e *Engine) createFulfillment(ctx context.Context, payload *IntentPayload) ProcessResult {
	db := config.GetDB()
	tx := db.Begin()

	order, created, err := e.resolveOrCreateOrder(ctx, tx, payload)
	if err != nil {
		tx.Rollback()
		return e.failure(ctx, "createFulfillment", payload, fmt.Sprintf("Could not fulfill the order: %s.", userMessage(err)), err)
	}
	if order.Status == models.OrderStatusPaid {
		tx.Rollback()
		return ProcessResult{
			OrderReference: &order.DisplayNumber,
			Message:        fmt.Sprintf("Order %s is already fully paid and closed. No fulfillment was recorded.", order.DisplayNumber),
		}
	}
	if err := order.Fulfill(ctx, tx); err != nil {
		tx.Rollback()
		return e.failure(ctx, "createFulfillment", payload, fmt.Sprintf("Could not fulfill order %s: %s.", order.DisplayNumber, userMessage(err)), err)
	}
	if err := tx.Commit().Error; err != nil {
		return e.failure(ctx, "createFulfillment", payload, fmt.Sprintf("Could not fulfill order %s.", order.DisplayNumber), err)
	}

	msg := fmt.Sprintf("Order %s has been fulfilled and marked as DELIVERED.", order.DisplayNumber)
	if created {
		msg = fmt.Sprintf("Created order %s and marked it as DELIVERED.", order.DisplayNumber)
	}
	return ProcessResult{OrderReference: &order.DisplayNumber, Message: msg}
}

func (e *Engine) createInvoice(ctx context.Context, payload *IntentPayload) ProcessResult {
	db := config.GetDB()
	tx := db.Begin()

	order, created, err := e.resolveOrCreateOrder(ctx, tx, payload)
	if err != nil {
		tx.Rollback()
		return e.failure(ctx, "createInvoice", payload, fmt.Sprintf("Could not generate the invoice: %s.", userMessage(err)), err)
	}
	if order.Status == models.OrderStatusPaid {
		tx.Rollback()
		return ProcessResult{
			OrderReference: &order.DisplayNumber,
			Message:        fmt.Sprintf("Order %s is already fully paid and closed. No invoice was generated.", order.DisplayNumber),
		}
	}
	if len(order.Items) == 0 {
		tx.Rollback()
		// A synthesized order rolls back here; pointing the operator at its
		// number would reference an order that no longer exists.
		if created {
			return ProcessResult{Message: "An invoice needs at least one line item. Provide products and quantities, or an existing order number."}
		}
		return ProcessResult{
			OrderReference: &order.DisplayNumber,
			Message:        fmt.Sprintf("Order %s has no line items to invoice.", order.DisplayNumber),
		}
	}
	if err := order.MarkInvoiced(ctx, tx); err != nil {
		tx.Rollback()
		return e.failure(ctx, "createInvoice", payload, fmt.Sprintf("Could not generate the invoice for order %s.", order.DisplayNumber), err)
	}
	if err := tx.Commit().Error; err != nil {
		return e.failure(ctx, "createInvoice", payload, fmt.Sprintf("Could not generate the invoice for order %s.", order.DisplayNumber), err)
	}

	// Document rendering and upload happen strictly after the commit so slow
	// external I/O never holds the order row lock.
	viewRef, docErr := e.generateInvoiceDocument(ctx, order)
	if docErr != nil {
		config.LogError(e.logger, "workflow", "createInvoice", "generateInvoiceDocument", order.DisplayNumber, docErr)
		msg := fmt.Sprintf("Order %s marked as INVOICED, but the invoice document is temporarily unavailable.", order.DisplayNumber)
		if created {
			msg = fmt.Sprintf("Created order %s and marked it as INVOICED, but the invoice document is temporarily unavailable.", order.DisplayNumber)
		}
		return ProcessResult{OrderReference: &order.DisplayNumber, Message: msg}
	}

	msg := fmt.Sprintf("Invoice generated for order %s. View it at %s.", order.DisplayNumber, viewRef)
	if created {
		msg = fmt.Sprintf("Created order %s and generated its invoice. View it at %s.", order.DisplayNumber, viewRef)
	}
	return ProcessResult{OrderReference: &order.DisplayNumber, Message: msg}
}

func (e *Engine) recordPayment(ctx context.Context, payload *IntentPayload) ProcessResult {
	if payload.CustomerPaymentAmount == nil {
		return ProcessResult{Message: "Please provide the payment amount to record."}
	}

	db := config.GetDB()
	tx := db.Begin()

	order, created, err := e.resolveOrCreateOrder(ctx, tx, payload)
	if err != nil {
		tx.Rollback()
		return e.failure(ctx, "recordPayment", payload, fmt.Sprintf("Could not record the payment: %s.", userMessage(err)), err)
	}
	if order.Status == models.OrderStatusPaid {
		tx.Rollback()
		return ProcessResult{
			OrderReference: &order.DisplayNumber,
			Message:        fmt.Sprintf("Order %s is already fully paid. No payment was recorded.", order.DisplayNumber),
		}
	}
	if err := order.ApplyPayment(ctx, tx, *payload.CustomerPaymentAmount); err != nil {
		tx.Rollback()
		return e.failure(ctx, "recordPayment", payload, fmt.Sprintf("Could not record the payment for order %s: %s.", order.DisplayNumber, userMessage(err)), err)
	}
	if err := tx.Commit().Error; err != nil {
		return e.failure(ctx, "recordPayment", payload, fmt.Sprintf("Could not record the payment for order %s.", order.DisplayNumber), err)
	}

	var msg string
	if order.Status == models.OrderStatusPaid {
		msg = fmt.Sprintf("Payment of %s recorded for order %s. The order is now fully PAID.",
			payload.CustomerPaymentAmount.String(), order.DisplayNumber)
	} else {
		msg = fmt.Sprintf("Payment of %s recorded for order %s. Status: %s, outstanding balance %s.",
			payload.CustomerPaymentAmount.String(), order.DisplayNumber, order.Status, order.BalanceAmount.String())
	}
	if created {
		msg = fmt.Sprintf("Created order %s. %s", order.DisplayNumber, msg)
	}
	return ProcessResult{OrderReference: &order.DisplayNumber, Message: msg}
}

func (e *Engine) checkInventory(ctx context.Context, payload *IntentPayload) ProcessResult {
	productName := strings.TrimSpace(payload.TargetProductName)
	orderNumber := strings.TrimSpace(payload.OrderNumber)
	if productName == "" && orderNumber == "" {
		return ProcessResult{Message: "Please provide a product name or an order number to check inventory."}
	}

	db := config.GetDB()

	var stocks []models.ProductStock
	var err error
	var orderRef *string
	if productName != "" {
		stocks, err = models.StockForProducts(ctx, db, []string{productName})
	} else {
		var order *models.Order
		order, err = models.GetOrderByDisplayNumber(ctx, db, orderNumber, false)
		if err == nil && order == nil {
			return ProcessResult{Message: fmt.Sprintf("Order %s not found.", orderNumber)}
		}
		if err == nil {
			orderRef = &order.DisplayNumber
			stocks, err = models.StockForOrder(ctx, db, order)
		}
	}
	if err != nil {
		return e.failure(ctx, "checkInventory", payload, fmt.Sprintf("Could not check inventory: %s.", userMessage(err)), err)
	}
	if len(stocks) == 0 {
		return ProcessResult{OrderReference: orderRef, Message: "No matching products found for the inventory check."}
	}

	lines := make([]string, 0, len(stocks))
	for _, s := range stocks {
		lines = append(lines, fmt.Sprintf("%s: %s in stock", s.ProductName, utils.FormatQty(s.Stock)))
	}
	return ProcessResult{OrderReference: orderRef, Message: strings.Join(lines, "; ")}
}

func (e *Engine) statusCheck(ctx context.Context, payload *IntentPayload) ProcessResult {
	orderNumber := strings.TrimSpace(payload.OrderNumber)
	if orderNumber == "" {
		return ProcessResult{Message: "Please provide an order number to check its status."}
	}

	db := config.GetDB()
	order, err := models.GetOrderByDisplayNumber(ctx, db, orderNumber, false)
	if err != nil {
		return e.failure(ctx, "statusCheck", payload, "Could not look up the order status.", err)
	}
	if order == nil {
		return ProcessResult{Message: fmt.Sprintf("Order %s not found.", orderNumber)}
	}

	return ProcessResult{
		OrderReference: &order.DisplayNumber,
		Message: fmt.Sprintf("Order %s: status %s, total %s, paid %s, balance %s.",
			order.DisplayNumber, order.Status,
			order.TotalAmount.String(), order.PaidAmount.String(), order.BalanceAmount.String()),
	}
}

// failure logs the underlying error and returns a graceful, prose-only
// result. Fatal configuration errors are logged loudly: the system is
// unusable until seed data is corrected.
func (e *Engine) failure(ctx context.Context, funcName string, payload *IntentPayload, message string, err error) ProcessResult {
	if errors.Is(err, utils.ErrorFatalConfig) {
		config.LogError(e.logger, "workflow", funcName, "fatal configuration", payload.Intent, err)
	} else {
		config.LogError(e.logger, "workflow", funcName, string(payload.Intent), nil, err)
	}
	return ProcessResult{Message: message}
}

// userMessage strips internals from an error destined for the operator.
func userMessage(err error) string {
	var productErr *utils.ProductNotFoundError
	if errors.As(err, &productErr) {
		return productErr.Error()
	}
	var stockErr *utils.InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.Error()
	}
	switch {
	case errors.Is(err, utils.ErrorFatalConfig):
		return "the system is not configured correctly, please contact support"
	case errors.Is(err, utils.ErrorRecordNotFound):
		return strings.TrimPrefix(err.Error(), utils.ErrorRecordNotFound.Error()+": ") + " not found"
	case errors.Is(err, utils.ErrorInvalidPayload):
		return strings.TrimPrefix(err.Error(), utils.ErrorInvalidPayload.Error()+": ")
	default:
		return "an unexpected error occurred"
	}
}
