package models

import (
	"context"
	"errors"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaxConfig holds the per-country rate (percentage) and tax-type label.
type TaxConfig struct {
	ID        string          `gorm:"primary_key;size:36" json:"id"`
	Country   string          `gorm:"size:2;uniqueIndex;not null" json:"country"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"rate"`
	TaxType   string          `gorm:"size:20;not null;default:'N/A'" json:"tax_type"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (tc *TaxConfig) BeforeCreate(tx *gorm.DB) error {
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	return nil
}

// TaxForCountry applies the country's tax configuration to a subtotal.
// A missing configuration is not an error: rate 0, tax type "N/A".
func TaxForCountry(ctx context.Context, tx *gorm.DB, country string, subtotal decimal.Decimal) (*utils.TaxResult, error) {
	var taxConfig TaxConfig
	err := tx.WithContext(ctx).Where("country = ?", country).First(&taxConfig).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		taxConfig = TaxConfig{Rate: decimal.Zero, TaxType: "N/A"}
	}

	taxAmount, total := utils.CalculateTax(taxConfig.Rate, subtotal)
	return &utils.TaxResult{
		Rate:      taxConfig.Rate,
		TaxAmount: taxAmount,
		Total:     total,
		TaxType:   taxConfig.TaxType,
	}, nil
}
