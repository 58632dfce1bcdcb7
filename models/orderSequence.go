package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"gorm.io/gorm"
)

var orderSeqMutex sync.Mutex

const orderSeqKey = "order_invoice_seq"

// NextInvoiceNumber returns the next sequential invoice number. The counter
// lives in redis and is seeded from MAX(invoice_number) when cold; the value
// is verified unused against the orders table inside the caller's transaction
// before being handed out, and the unique index on invoice_number backstops
// any remaining race. Must be called inside the transaction that inserts the
// order.
func NextInvoiceNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	orderSeqMutex.Lock()
	defer orderSeqMutex.Unlock()

	for {
		seqNo, err := config.GetRedisCounter(ctx, orderSeqKey)
		if err != nil {
			return 0, err
		}
		// Cold counter (first increment returns 1) or redis absent (returns
		// 0): seed from the database max.
		if seqNo <= 1 {
			var dbMax *int64
			if err := tx.WithContext(ctx).Model(&Order{}).
				Select("MAX(invoice_number)").Scan(&dbMax).Error; err != nil {
				return 0, err
			}
			var next int64 = 1
			if dbMax != nil {
				next = *dbMax + 1
			}
			if next > seqNo {
				seqNo = next
				if err := config.SetRedisCounter(ctx, orderSeqKey, seqNo); err != nil {
					return 0, err
				}
			}
		}

		var count int64
		if err := tx.WithContext(ctx).Model(&Order{}).
			Where("invoice_number = ?", seqNo).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return seqNo, nil
		}
	}
}

// DisplayNumber renders the human-facing form of an invoice number.
func DisplayNumber(invoiceNumber int64) string {
	return fmt.Sprintf("%s%d", DisplayNumberPrefix, invoiceNumber)
}
