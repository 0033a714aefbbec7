package models

import (
	"log"

	"bitbucket.org/harborfuel/erp_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &Terminal{}, &PurchaseOrderLot{},
		&InventoryMovement{},
		&Journal{}, &JournalTransaction{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
