package models

import (
	"log"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Organization{}, &Party{}, &Product{}, &TaxConfig{},
		&Order{}, &OrderItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
