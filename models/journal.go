package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Journal is a posted general-ledger voucher. The bookkeeping mechanism
// itself (double-entry balancing, posting) belongs to the GL module; the
// costing core only reads journal lines by reference and corrects COGS /
// inventory amounts in place.
type Journal struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	CompanyId       string               `gorm:"size:64;index;not null" json:"company_id"`
	JournalNumber   string               `gorm:"size:255;not null" json:"journal_number"`
	ReferenceNumber string               `gorm:"size:64;index;not null" json:"reference_number"`
	JournalDate     time.Time            `gorm:"not null" json:"journal_date"`
	JournalNotes    string               `gorm:"type:text" json:"journal_notes"`
	TotalAmount     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Transactions    []JournalTransaction `gorm:"foreignKey:JournalId" json:"transactions"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type JournalTransaction struct {
	ID          int             `gorm:"primary_key" json:"id"`
	JournalId   int             `gorm:"index;not null" json:"journal_id"`
	AccountId   int             `gorm:"index;not null" json:"account_id"`
	AccountRole AccountRole     `gorm:"type:enum('none','cogs','inventory_asset');default:'none';index" json:"account_role"`
	Description string          `gorm:"size:255" json:"description"`
	Debit       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
}

func (j *Journal) GetId() int {
	return j.ID
}

func (jt JournalTransaction) GetId() int {
	return jt.ID
}

// Amount returns the nonzero side's value. A line never carries both sides.
func (jt JournalTransaction) Amount() decimal.Decimal {
	if !jt.Debit.IsZero() {
		return jt.Debit
	}
	return jt.Credit
}

// IsDebit reports which side holds the amount. Zero-zero lines count as debit.
func (jt JournalTransaction) IsDebit() bool {
	return !jt.Debit.IsZero() || jt.Credit.IsZero()
}
