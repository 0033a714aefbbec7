package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product master record, reduced to what the costing core reads: account
// routing and the nominal purchase price used as the fallback sale cost.
type Product struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	CompanyId          string          `gorm:"size:64;index;not null" json:"company_id"`
	Name               string          `gorm:"size:100;not null" json:"name"`
	Sku                string          `gorm:"index;size:100" json:"sku"`
	PurchasePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	PurchaseTaxRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_tax_rate"`
	IsTaxInclusive     *bool           `gorm:"not null;default:true" json:"is_tax_inclusive"`
	InventoryAccountId int             `gorm:"not null" json:"inventory_account_id"`
	CogsAccountId      int             `gorm:"not null" json:"cogs_account_id"`
	IsActive           *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(ctx context.Context, tx *gorm.DB, companyId string, id int) (*Product, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	var product Product
	err := tx.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
