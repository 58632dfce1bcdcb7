package models

import (
	"context"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/shopspring/decimal"
)

// SeedDemoData provisions the demo organizations, catalog, parties and tax
// configuration. Idempotent: skipped entirely once any organization exists.
func SeedDemoData(ctx context.Context) error {
	db := config.GetDB()
	logger := config.GetLogger()

	var organizationCount int64
	if err := db.WithContext(ctx).Model(&Organization{}).Count(&organizationCount).Error; err != nil {
		return err
	}
	if organizationCount > 0 {
		logger.Info("database already seeded, skipping")
		return nil
	}

	logger.Info("starting database seeding")

	org1 := Organization{Name: "Hemadri Solutions", Country: "IN", TaxId: "29AABCH1234E1Z2"}
	org2 := Organization{Name: "Selmel Liquors", Country: "IN", TaxId: "27AABCT1234H1Z0"}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&org1).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.WithContext(ctx).Create(&org2).Error; err != nil {
		tx.Rollback()
		return err
	}

	products := []Product{
		{OrgId: org2.ID, Name: "kingfisher", UnitPrice: decimal.RequireFromString("150.00"), CurrentStock: decimal.NewFromInt(50)},
		{OrgId: org2.ID, Name: "tuborg", UnitPrice: decimal.RequireFromString("130.00"), CurrentStock: decimal.NewFromInt(200)},
		{OrgId: org2.ID, Name: "Heineken Lager", UnitPrice: decimal.RequireFromString("180.00"), CurrentStock: decimal.NewFromInt(500)},
		{OrgId: org2.ID, Name: "Hayward 500 Larger", UnitPrice: decimal.RequireFromString("199.99"), CurrentStock: decimal.NewFromInt(30)},
		{OrgId: org2.ID, Name: "Canadian Goose", UnitPrice: decimal.RequireFromString("249.99"), CurrentStock: decimal.NewFromInt(100)},
		{OrgId: org2.ID, Name: "Malibu Rum", UnitPrice: decimal.RequireFromString("299.99"), CurrentStock: decimal.NewFromInt(150)},
	}
	for i := range products {
		if err := tx.WithContext(ctx).Create(&products[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	parties := []Party{
		{OrgId: org2.ID, Name: "Hilton Hotels India", Role: PartyRoleCustomer, Phone: "416-555-0123"},
		{OrgId: org2.ID, Name: "Restaurant Supply Co.", Role: PartyRoleVendor, Phone: "416-555-0124"},
		{OrgId: org2.ID, Name: "Ryan", Role: PartyRoleCustomer, Phone: "416-555-0125"},
		{OrgId: org2.ID, Name: "Anonymous Traders", Role: PartyRoleCustomer, Phone: "+91-80-4156-0000"},
		{OrgId: org2.ID, Name: "Spencer & Co. Suppliers", Role: PartyRoleVendor, Phone: "+91-11-4155-1234"},
		{OrgId: org2.ID, Name: "Taj Hotels", Role: PartyRoleVendor, Phone: "+91-22-6178-2000"},
	}
	for i := range parties {
		if err := tx.WithContext(ctx).Create(&parties[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	taxConfigs := []TaxConfig{
		{Country: "IN", Rate: decimal.RequireFromString("18.00"), TaxType: "GST"},
		{Country: "CA", Rate: decimal.RequireFromString("13.00"), TaxType: "HST"},
	}
	for i := range taxConfigs {
		if err := tx.WithContext(ctx).Create(&taxConfigs[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("database seeding completed")
	return nil
}
