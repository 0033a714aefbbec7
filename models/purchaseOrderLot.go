package models

import (
	"context"
	"time"

	"bitbucket.org/harborfuel/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrderLot is one received purchase-order line lot. It pins a
// chain to a specific procurement (lot-scoped cost pools) and carries the
// contracted unit price used both for Purchase movements and as the
// fallback cost when a sale posts before any purchase movement exists.
type PurchaseOrderLot struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"size:64;index;not null" json:"company_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	TerminalId     int             `gorm:"index;not null" json:"terminal_id"`
	LotNumber      string          `gorm:"size:100;not null" json:"lot_number"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	IsTaxInclusive *bool           `gorm:"not null;default:true" json:"is_tax_inclusive"`
	ReceivedDate   time.Time       `json:"received_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetPurchaseOrderLot(ctx context.Context, tx *gorm.DB, companyId string, id int) (*PurchaseOrderLot, error) {
	var lot PurchaseOrderLot
	err := tx.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, id).
		First(&lot).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// NetUnitCost is the lot's contracted unit price net of tax.
func (l *PurchaseOrderLot) NetUnitCost() decimal.Decimal {
	inclusive := l.IsTaxInclusive == nil || *l.IsTaxInclusive
	return utils.NetUnitCost(l.UnitPrice, l.TaxRate, inclusive)
}
