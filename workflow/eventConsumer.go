package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const inventoryEventHandler = "InventoryEvent"

// ProcessInventoryEvent applies one domain event from the AP/AR systems
// inside a single transaction: durable idempotency, record-or-void,
// journal reconciliation. The per-pool advisory lock is taken on a
// dedicated connection before the transaction opens and released only
// after it returns, so no competing writer can read a pre-commit snapshot
// of the chain. The average-cost cache entry for the pool is dropped
// after commit.
func ProcessInventoryEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, event config.InventoryEvent) error {
	if event.CompanyId == "" {
		return errors.New("company id is required")
	}
	if event.MessageId == "" {
		return errors.New("message id is required")
	}
	kind := models.InventoryEventKind(event.Kind)

	ctx, span := otel.Tracer("workflow").Start(ctx, "ProcessInventoryEvent",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	key, lot, err := resolveEventPool(ctx, db, event, kind)
	if err != nil {
		config.LogError(logger, "eventConsumer.go", "ProcessInventoryEvent", "resolve pool", event, err)
		return err
	}

	// Enforce strict per-pool ordering across instances. The lock outlives
	// the transaction below; see ChainLock.
	lock, err := AcquireChainLock(ctx, db, key)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	err = db.Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx.WithContext(ctx), event.CompanyId, inventoryEventHandler, event.MessageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		if err := applyInventoryEvent(ctx, tx, logger, event, kind, key, lot); err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx.WithContext(ctx), event.CompanyId, inventoryEventHandler, event.MessageId)
	})
	if err != nil {
		// The transaction rolled back, taking its STARTED row with it;
		// record the failure on its own connection so last_error survives
		// for operators. In-progress collisions are not failures.
		if !errors.Is(err, ErrIdempotencyInProgress) {
			if mErr := MarkIdempotencyFailed(db.WithContext(ctx), event.CompanyId, inventoryEventHandler, event.MessageId, err); mErr != nil {
				config.LogError(logger, "eventConsumer.go", "ProcessInventoryEvent", "mark idempotency failed", event.MessageId, mErr)
			}
		}
		return err
	}

	// The message is committed; a stale cache entry is recoverable, so a
	// cache failure must not trigger a redelivery.
	if err := models.InvalidatePoolAverageCost(key); err != nil {
		config.LogError(logger, "eventConsumer.go", "ProcessInventoryEvent", "invalidate average cost cache", key.String(), err)
	}
	return nil
}

// resolveEventPool determines the cost pool the event mutates. Purchases
// derive it from the received lot; voids from the stored movement.
func resolveEventPool(ctx context.Context, db *gorm.DB, event config.InventoryEvent, kind models.InventoryEventKind) (models.CostPoolKey, *models.PurchaseOrderLot, error) {
	switch kind {
	case models.InventoryEventPurchaseReceived:
		lot, err := models.GetPurchaseOrderLot(ctx, db, event.CompanyId, event.LotId)
		if err != nil {
			return models.CostPoolKey{}, nil, fmt.Errorf("purchase order lot %d: %w", event.LotId, err)
		}
		key := models.CostPoolKey{
			CompanyId:  lot.CompanyId,
			ProductId:  lot.ProductId,
			TerminalId: lot.TerminalId,
			LotId:      lot.ID,
		}
		return key, lot, nil

	case models.InventoryEventMovementVoided:
		target, err := NewLedgerStore(db).FindMovement(ctx, event.CompanyId, event.MovementId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.CostPoolKey{}, nil, ErrMovementNotFound
			}
			return models.CostPoolKey{}, nil, err
		}
		return target.PoolKey(), nil, nil

	case models.InventoryEventSaleDelivered, models.InventoryEventBeginningBalance,
		models.InventoryEventActualCount, models.InventoryEventCostRevision:
		key := models.CostPoolKey{
			CompanyId:  event.CompanyId,
			ProductId:  event.ProductId,
			TerminalId: event.TerminalId,
			LotId:      event.LotId,
		}
		return key, nil, nil
	}
	return models.CostPoolKey{}, nil, fmt.Errorf("unknown inventory event kind %q", event.Kind)
}

func applyInventoryEvent(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, event config.InventoryEvent, kind models.InventoryEventKind, key models.CostPoolKey, lot *models.PurchaseOrderLot) error {
	ledger := NewLedgerStore(tx)
	journal := NewJournalStore(tx)
	recorder := NewMovementRecorder(ledger, journal, NewFallbackCostResolver(tx), logger)

	var err error
	switch kind {
	case models.InventoryEventPurchaseReceived:
		_, err = recorder.RecordPurchase(ctx, lot, event.Qty, event.UnitCost, event.MovementDate, event.ReferenceId)
	case models.InventoryEventSaleDelivered:
		_, err = recorder.RecordSale(ctx, key, event.Qty, event.MovementDate, event.ReferenceId)
	case models.InventoryEventBeginningBalance:
		_, err = recorder.RecordBeginningBalance(ctx, key, event.Qty, event.UnitCost, event.MovementDate, event.ReferenceId)
	case models.InventoryEventActualCount:
		_, err = recorder.RecordActualCount(ctx, key, event.Qty, event.MovementDate, event.ReferenceId)
	case models.InventoryEventCostRevision:
		_, err = recorder.RecordCostRevision(ctx, key, event.UnitCost, event.MovementDate, event.ReferenceId)
	case models.InventoryEventMovementVoided:
		handler := NewVoidCascadeHandler(ledger, journal, logger)
		_, err = handler.Void(ctx, event.CompanyId, event.MovementId)
	default:
		err = fmt.Errorf("unknown inventory event kind %q", event.Kind)
	}
	return err
}
