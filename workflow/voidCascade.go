package workflow

import (
	"context"
	"errors"

	"bitbucket.org/harborfuel/erp_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VoidCascadeHandler removes one movement from a chain and recomputes the
// remainder as if that movement never existed. The removal and every
// resulting tail update commit as one unit through the injected stores.
type VoidCascadeHandler struct {
	ledger  LedgerStore
	journal JournalStore
	logger  *logrus.Logger
}

func NewVoidCascadeHandler(ledger LedgerStore, journal JournalStore, logger *logrus.Logger) *VoidCascadeHandler {
	return &VoidCascadeHandler{ledger: ledger, journal: journal, logger: logger}
}

// Void removes the movement and cascades recomputation through everything
// after its chain position. Returns the removed movement.
func (h *VoidCascadeHandler) Void(ctx context.Context, companyId string, movementId string) (*models.InventoryMovement, error) {
	target, err := h.ledger.FindMovement(ctx, companyId, movementId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovementNotFound
		}
		return nil, err
	}

	key := target.PoolKey()
	chain, err := h.ledger.LoadChain(ctx, key)
	if err != nil {
		return nil, err
	}

	at := -1
	for i, m := range chain {
		if m.ID == movementId {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, ErrMovementNotFound
	}

	chain, removed, corrections, err := VoidAndRecompute(h.logger, chain, movementId)
	if err != nil {
		return nil, err
	}

	if err := h.ledger.Persist(ctx, chain[at:], removed); err != nil {
		return nil, err
	}
	if err := syncJournalCorrections(ctx, h.journal, h.logger, companyId, corrections); err != nil {
		return nil, err
	}

	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{
			"pool":         key.String(),
			"movement_id":  movementId,
			"reference_id": removed.ReferenceId,
			"recomputed":   len(chain) - at,
		}).Info("inv.chain.void")
	}
	return removed, nil
}
