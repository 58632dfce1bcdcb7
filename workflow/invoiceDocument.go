package workflow

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/models"
	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/shopspring/decimal"
)

// InvoiceDocumentData is the normalized view handed to document generation.
type InvoiceDocumentData struct {
	InvoiceNumber  string               `json:"invoice_number"`
	CreatedDate    string               `json:"created_date"`
	DueDate        string               `json:"due_date"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	SubtotalAmount decimal.Decimal      `json:"subtotal_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	TaxSummary     string               `json:"tax_summary"`
	Items          []InvoiceDocumentRow `json:"items"`
	Currency       string               `json:"currency"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
}

type InvoiceDocumentRow struct {
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.InvoiceNumber}}</title></head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p>Date: {{.CreatedDate}}{{if .DueDate}} &middot; Due: {{.DueDate}}{{end}}</p>
<p>Billed to: {{.CustomerName}}{{if .CustomerEmail}} ({{.CustomerEmail}}){{end}}</p>
<table border="1" cellspacing="0" cellpadding="4">
<tr><th>Item</th><th>Qty</th><th>Unit Price</th><th>Total</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.TotalPrice}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Currency}} {{.SubtotalAmount}}</p>
<p>Tax ({{.TaxSummary}}): {{.Currency}} {{.TaxAmount}}</p>
<p><strong>Total: {{.Currency}} {{.TotalAmount}}</strong></p>
</body>
</html>
`

var invoiceTmpl = template.Must(template.New("invoice").Parse(invoiceTemplate))

// BuildInvoiceDocumentData assembles the normalized invoice view for an
// order, resolving the customer for name and contact.
func (e *Engine) BuildInvoiceDocumentData(ctx context.Context, order *models.Order) (*InvoiceDocumentData, error) {
	db := config.GetDB()

	var party models.Party
	if err := db.WithContext(ctx).Where("id = ?", order.PartyId).First(&party).Error; err != nil {
		return nil, err
	}

	data := InvoiceDocumentData{
		InvoiceNumber:  order.DisplayNumber,
		CreatedDate:    order.CreatedAt.Format("2006-01-02"),
		CustomerName:   party.Name,
		CustomerEmail:  party.Email,
		SubtotalAmount: order.SubtotalAmount,
		TaxAmount:      order.TaxAmount,
		TaxSummary:     order.TaxSummary,
		Currency:       e.defaults.Currency,
		TotalAmount:    order.TotalAmount,
	}
	if order.DueDate != nil {
		data.DueDate = order.DueDate.Format("2006-01-02")
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, InvoiceDocumentRow{
			Name:       item.Description,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: utils.Round2(item.Quantity.Mul(item.UnitPrice)),
		})
	}
	return &data, nil
}

// generateInvoiceDocument renders and stores the invoice document and
// returns the retrievable reference. Runs outside any order-mutating
// transaction; a failure here degrades the response message only.
func (e *Engine) generateInvoiceDocument(ctx context.Context, order *models.Order) (string, error) {
	data, err := e.BuildInvoiceDocumentData(ctx, order)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	objectName := InvoiceObjectName(order.DisplayNumber)
	if err := utils.SaveDocumentToGCS(ctx, objectName, "text/html", buf.Bytes()); err != nil {
		return "", err
	}
	return fmt.Sprintf("/view/%s", order.DisplayNumber), nil
}

// InvoiceObjectName is the storage key for an order's invoice document.
func InvoiceObjectName(displayNumber string) string {
	return fmt.Sprintf("invoice_%s.html", displayNumber)
}

// SignedInvoiceURL returns a short-lived signed URL for a stored invoice
// document, generated on the fly for the /view redirect.
func SignedInvoiceURL(displayNumber string) (string, error) {
	return utils.GetSignedDocumentURL(InvoiceObjectName(displayNumber), 15*time.Minute)
}
