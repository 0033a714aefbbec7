package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostPoolKey identifies one independent moving-average chain. All
// movements sharing a key are totally ordered and mutually dependent;
// movements in different pools never affect each other.
type CostPoolKey struct {
	CompanyId  string `json:"company_id" validate:"required"`
	ProductId  int    `json:"product_id" validate:"required,gt=0"`
	TerminalId int    `json:"terminal_id" validate:"required,gt=0"`
	LotId      int    `json:"lot_id"` // 0 = pool is not lot-scoped
}

func (k CostPoolKey) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", k.CompanyId, k.ProductId, k.TerminalId, k.LotId)
}

// InventoryMovement is one row of a cost pool's chronological chain.
//
// Qty is stored as an unsigned magnitude; direction comes from Kind
// (IsOutgoing is denormalized for query ordering). Kind and Qty are
// immutable after creation; UnitCost, LineTotal and the closing balances
// are rewritten by cascade recomputation.
type InventoryMovement struct {
	ID            string          `gorm:"size:36;primary_key" json:"id"` // uuid
	CompanyId     string          `gorm:"size:64;index:idx_inv_move_pool_date,priority:1;not null" json:"company_id"`
	ProductId     int             `gorm:"index:idx_inv_move_pool_date,priority:2;not null" json:"product_id"`
	TerminalId    int             `gorm:"index:idx_inv_move_pool_date,priority:3;not null" json:"terminal_id"`
	LotId         int             `gorm:"index:idx_inv_move_pool_date,priority:4;default:0" json:"lot_id"`
	MovementDate  time.Time       `gorm:"index:idx_inv_move_pool_date,priority:5;not null" json:"movement_date"`
	Seq           int             `gorm:"index;default:0" json:"seq"`
	Kind          MovementKind    `gorm:"type:enum('PUR','SAL','BEG','CNT','REV');not null" json:"kind"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	IsOutgoing    *bool           `gorm:"not null;default:false" json:"is_outgoing"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
	ClosingQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_qty"`
	ClosingValue  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_value"`
	AverageCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_cost"`
	ReferenceId   string          `gorm:"size:64;index;not null" json:"reference_id"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *InventoryMovement) PoolKey() CostPoolKey {
	return CostPoolKey{
		CompanyId:  m.CompanyId,
		ProductId:  m.ProductId,
		TerminalId: m.TerminalId,
		LotId:      m.LotId,
	}
}

// Incoming mirrors the persisted is_outgoing flag: chain ordering places
// incoming rows before outgoing rows on the same calendar date, and the
// in-memory comparator must agree with the stored sort key or a reload
// recomputes the chain in a different order. ActualCount rows carry their
// direction in IsOutgoing (gain vs loss); cost revisions move value, not
// quantity, and sort with the incoming rows.
func (m *InventoryMovement) Incoming() bool {
	switch m.Kind {
	case MovementKindPurchase, MovementKindBeginningBalance:
		return true
	case MovementKindSale:
		return false
	case MovementKindActualCount:
		return m.IsOutgoing == nil || !*m.IsOutgoing
	}
	return true
}

// SignedQty is Qty with the sign implied by the movement's direction.
func (m *InventoryMovement) SignedQty() decimal.Decimal {
	if m.Kind == MovementKindCostRevision {
		return decimal.Zero
	}
	if m.Incoming() {
		return m.Qty
	}
	return m.Qty.Neg()
}

// BeforeSave enforces internal ledger invariants.
//
// Chain queries rely on IsOutgoing for same-day ordering (incoming rows
// sort before outgoing rows on the same calendar date), so it must never
// be nil and must always agree with Kind for non-count movements.
func (m *InventoryMovement) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if m == nil {
		return nil
	}
	if m.IsOutgoing == nil {
		b := false
		m.IsOutgoing = &b
	}
	switch m.Kind {
	case MovementKindPurchase, MovementKindBeginningBalance, MovementKindCostRevision:
		b := false
		m.IsOutgoing = &b
	case MovementKindSale:
		b := true
		m.IsOutgoing = &b
	}
	return nil
}
