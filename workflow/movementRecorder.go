package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/harborfuel/erp_backend/models"
	"bitbucket.org/harborfuel/erp_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FallbackCostResolver supplies a unit cost for a sale recorded before
// any inflow movement exists in its pool (first-sale-before-any-purchase).
type FallbackCostResolver interface {
	FallbackUnitCost(ctx context.Context, key models.CostPoolKey) (decimal.Decimal, error)
}

// MovementRecorder translates inventory domain events into chain
// movements: build the movement, run the cost engine, persist the
// rewritten tail, reconcile posted journal amounts. All I/O goes through
// the injected stores, so the caller decides the transaction boundary.
type MovementRecorder struct {
	ledger   LedgerStore
	journal  JournalStore
	fallback FallbackCostResolver
	logger   *logrus.Logger
}

func NewMovementRecorder(ledger LedgerStore, journal JournalStore, fallback FallbackCostResolver, logger *logrus.Logger) *MovementRecorder {
	return &MovementRecorder{ledger: ledger, journal: journal, fallback: fallback, logger: logger}
}

// RecordPurchase records goods received against a purchase-order lot at
// the supplied net-of-tax unit cost.
func (r *MovementRecorder) RecordPurchase(ctx context.Context, lot *models.PurchaseOrderLot, qty decimal.Decimal, netUnitCost decimal.Decimal, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	if lot == nil {
		return nil, errors.New("purchase order lot is required")
	}
	key := models.CostPoolKey{
		CompanyId:  lot.CompanyId,
		ProductId:  lot.ProductId,
		TerminalId: lot.TerminalId,
		LotId:      lot.ID,
	}
	return r.record(ctx, models.MovementKindPurchase, key, qty, netUnitCost, false, date, referenceId)
}

// RecordSale records goods delivered; unit cost comes from the pool's
// moving average, or from the fallback resolver when the sale predates
// every inflow.
func (r *MovementRecorder) RecordSale(ctx context.Context, key models.CostPoolKey, qty decimal.Decimal, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	return r.record(ctx, models.MovementKindSale, key, qty, decimal.Zero, true, date, referenceId)
}

func (r *MovementRecorder) RecordBeginningBalance(ctx context.Context, key models.CostPoolKey, qty decimal.Decimal, unitCost decimal.Decimal, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	return r.record(ctx, models.MovementKindBeginningBalance, key, qty, unitCost, false, date, referenceId)
}

// RecordActualCount records a physical-count variance. The variance is
// signed: positive for a gain, negative for a loss; it is valued at the
// average cost in effect at its chain position.
func (r *MovementRecorder) RecordActualCount(ctx context.Context, key models.CostPoolKey, variance decimal.Decimal, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	if variance.IsZero() {
		return nil, errors.New("count variance must be nonzero")
	}
	return r.record(ctx, models.MovementKindActualCount, key, variance.Abs(), decimal.Zero, variance.IsNegative(), date, referenceId)
}

// RecordCostRevision reprices the pool's remaining balance to a supplied
// unit cost without moving any quantity.
func (r *MovementRecorder) RecordCostRevision(ctx context.Context, key models.CostPoolKey, newUnitCost decimal.Decimal, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	if newUnitCost.IsNegative() {
		return nil, errors.New("unit cost must not be negative")
	}
	return r.record(ctx, models.MovementKindCostRevision, key, decimal.Zero, newUnitCost, false, date, referenceId)
}

func (r *MovementRecorder) record(ctx context.Context, kind models.MovementKind, key models.CostPoolKey, qty decimal.Decimal, unitCost decimal.Decimal, isOutgoing bool, date time.Time, referenceId string) (*models.InventoryMovement, error) {
	if err := utils.ValidateStruct(key); err != nil {
		return nil, err
	}
	if referenceId == "" {
		return nil, errors.New("reference id is required")
	}
	if qty.IsNegative() {
		return nil, errors.New("quantity must not be negative")
	}
	if kind != models.MovementKindCostRevision && qty.IsZero() {
		return nil, errors.New("quantity must be positive")
	}
	movementDate, err := utils.ConvertToDate(date, "UTC")
	if err != nil {
		return nil, err
	}

	chain, err := r.ledger.LoadChain(ctx, key)
	if err != nil {
		return nil, err
	}
	seq, err := r.ledger.NextSeq(ctx, key)
	if err != nil {
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	outgoing := isOutgoing
	movement := &models.InventoryMovement{
		ID:            uuid.NewString(),
		CompanyId:     key.CompanyId,
		ProductId:     key.ProductId,
		TerminalId:    key.TerminalId,
		LotId:         key.LotId,
		MovementDate:  movementDate,
		Seq:           seq,
		Kind:          kind,
		Qty:           qty,
		IsOutgoing:    &outgoing,
		UnitCost:      unitCost,
		ReferenceId:   referenceId,
		CorrelationId: correlationId,
	}

	at := insertionIndex(chain, movement)
	if kind == models.MovementKindSale && at == 0 {
		cost, err := r.resolveFallbackCost(ctx, key)
		if err != nil {
			return nil, err
		}
		movement.UnitCost = cost
	}

	chain, corrections, err := InsertAndRecompute(r.logger, chain, movement)
	if err != nil {
		return nil, err
	}

	if err := r.ledger.Persist(ctx, chain[at:], nil); err != nil {
		return nil, err
	}
	if err := syncJournalCorrections(ctx, r.journal, r.logger, key.CompanyId, corrections); err != nil {
		return nil, err
	}
	return movement, nil
}

func (r *MovementRecorder) resolveFallbackCost(ctx context.Context, key models.CostPoolKey) (decimal.Decimal, error) {
	if r.fallback == nil {
		return decimal.Zero, nil
	}
	cost, err := r.fallback.FallbackUnitCost(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return cost, nil
}

// gormFallbackCostResolver falls back to the lot's contracted price when
// the pool is lot-scoped, else to the product's nominal purchase price,
// both net of tax. An unresolvable pool yields zero, which the engine
// rejects as a missing cost pool.
type gormFallbackCostResolver struct {
	db *gorm.DB
}

func NewFallbackCostResolver(db *gorm.DB) FallbackCostResolver {
	return &gormFallbackCostResolver{db: db}
}

func (f *gormFallbackCostResolver) FallbackUnitCost(ctx context.Context, key models.CostPoolKey) (decimal.Decimal, error) {
	if key.LotId > 0 {
		lot, err := models.GetPurchaseOrderLot(ctx, f.db, key.CompanyId, key.LotId)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, err
		}
		if lot != nil && !lot.UnitPrice.IsZero() {
			return lot.NetUnitCost(), nil
		}
	}

	product, err := models.GetProduct(ctx, f.db, key.CompanyId, key.ProductId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	inclusive := product.IsTaxInclusive == nil || *product.IsTaxInclusive
	return utils.NetUnitCost(product.PurchasePrice, product.PurchaseTaxRate, inclusive), nil
}
