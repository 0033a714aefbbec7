package workflow

import (
	"errors"

	"bitbucket.org/harborfuel/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingCostPool signals a sale against a pool with no baseline
	// movement and no resolvable fallback cost: beginning inventory was
	// never established.
	ErrMissingCostPool = errors.New("beginning inventory not established for cost pool")

	// ErrMovementNotFound signals a void target absent from the supplied chain.
	ErrMovementNotFound = errors.New("movement not found in cost pool chain")
)

// CogsCorrection reports a movement whose cost of goods sold changed
// during a cascade, so the recorder can reconcile posted journal lines.
type CogsCorrection struct {
	ReferenceId string
	Amount      decimal.Decimal
}

// poolBaseline is the running state carried from one movement to the next.
// The zero value is the sentinel baseline of an empty chain.
type poolBaseline struct {
	Qty         decimal.Decimal
	Value       decimal.Decimal
	AverageCost decimal.Decimal
}

func baselineOf(m *models.InventoryMovement) poolBaseline {
	return poolBaseline{Qty: m.ClosingQty, Value: m.ClosingValue, AverageCost: m.AverageCost}
}

// movementBefore orders two movements of the same pool: calendar date
// first, incoming before outgoing on the same date (so a same-day purchase
// always precedes a same-day sale for average-cost purposes), then
// insertion sequence.
func movementBefore(a, b *models.InventoryMovement) bool {
	if !a.MovementDate.Equal(b.MovementDate) {
		return a.MovementDate.Before(b.MovementDate)
	}
	if a.Incoming() != b.Incoming() {
		return a.Incoming()
	}
	return a.Seq < b.Seq
}

// insertionIndex is the position after the last movement ordered at or
// before m.
func insertionIndex(chain []*models.InventoryMovement, m *models.InventoryMovement) int {
	for i, existing := range chain {
		if movementBefore(m, existing) {
			return i
		}
	}
	return len(chain)
}

// applyMovement recomputes one movement's derived fields from the
// immediately preceding baseline and returns the baseline it leaves
// behind. Kind and Qty are never modified; UnitCost is rewritten for
// sales and count adjustments (the moving average in effect), kept for
// externally costed kinds.
func applyMovement(logger *logrus.Logger, prev poolBaseline, m *models.InventoryMovement) poolBaseline {
	switch m.Kind {
	case models.MovementKindPurchase, models.MovementKindBeginningBalance:
		m.LineTotal = m.Qty.Mul(m.UnitCost)
		m.ClosingQty = prev.Qty.Add(m.Qty)
		m.ClosingValue = prev.Value.Add(m.LineTotal)

	case models.MovementKindSale:
		if !prev.AverageCost.IsZero() || !prev.Qty.IsZero() || !prev.Value.IsZero() {
			m.UnitCost = prev.AverageCost
		}
		// An empty-chain sale keeps the fallback unit cost resolved by the
		// recorder before the engine ran.
		m.LineTotal = m.Qty.Mul(m.UnitCost).Neg()
		m.ClosingQty = prev.Qty.Sub(m.Qty)
		m.ClosingValue = prev.Value.Add(m.LineTotal)

	case models.MovementKindActualCount:
		// Count variances are valued at the average cost in effect.
		if !prev.AverageCost.IsZero() {
			m.UnitCost = prev.AverageCost
		}
		if m.Incoming() {
			m.LineTotal = m.Qty.Mul(m.UnitCost)
		} else {
			m.LineTotal = m.Qty.Mul(m.UnitCost).Neg()
		}
		m.ClosingQty = prev.Qty.Add(m.SignedQty())
		m.ClosingValue = prev.Value.Add(m.LineTotal)

	case models.MovementKindCostRevision:
		// Revaluation to a supplied unit cost: quantity untouched, the
		// whole remaining balance is repriced and the delta is the line.
		m.ClosingQty = prev.Qty
		m.ClosingValue = prev.Qty.Mul(m.UnitCost)
		m.LineTotal = m.ClosingValue.Sub(prev.Value)
	}

	if !m.ClosingQty.IsZero() && !m.ClosingValue.IsZero() {
		m.AverageCost = m.ClosingValue.DivRound(m.ClosingQty, 4)
	} else if !prev.AverageCost.IsZero() {
		m.AverageCost = prev.AverageCost
	} else {
		m.AverageCost = m.UnitCost
	}

	if m.ClosingQty.IsNegative() && logger != nil {
		// Oversold pools are tolerated (upstream validation is expected to
		// prevent them); the average cost is still computed mechanically.
		logger.WithFields(logrus.Fields{
			"pool":         m.PoolKey().String(),
			"reference_id": m.ReferenceId,
			"closing_qty":  m.ClosingQty.String(),
		}).Warn("inv.chain.negative_balance")
	}

	return baselineOf(m)
}

// recomputeFrom reapplies the chain formulas for every movement from
// startIndex onward, using the movement before startIndex (or the zero
// sentinel) as baseline. It returns the cost corrections for every
// recomputed sale and count adjustment.
func recomputeFrom(logger *logrus.Logger, chain []*models.InventoryMovement, startIndex int) []CogsCorrection {
	prev := poolBaseline{}
	if startIndex > 0 {
		prev = baselineOf(chain[startIndex-1])
	}

	corrections := make([]CogsCorrection, 0)
	for i := startIndex; i < len(chain); i++ {
		m := chain[i]
		prev = applyMovement(logger, prev, m)
		switch m.Kind {
		case models.MovementKindSale, models.MovementKindActualCount:
			corrections = append(corrections, CogsCorrection{
				ReferenceId: m.ReferenceId,
				Amount:      m.Qty.Mul(m.UnitCost),
			})
		}
	}
	return corrections
}

// InsertAndRecompute places a new movement at its chronological position
// in the chain, computes its cost fields, and cascades recomputation
// through every subsequent movement. The returned chain is the mutated
// input plus the new movement; corrections cover every sale/count row
// whose cost was recomputed (including the new movement itself when it is
// one).
//
// The engine performs no I/O. Persisting the chain and applying the
// corrections is the caller's job.
func InsertAndRecompute(logger *logrus.Logger, chain []*models.InventoryMovement, m *models.InventoryMovement) ([]*models.InventoryMovement, []CogsCorrection, error) {
	if m == nil || !m.Kind.Valid() {
		return chain, nil, errors.New("invalid movement kind")
	}

	at := insertionIndex(chain, m)

	if m.Kind == models.MovementKindSale && at == 0 && m.UnitCost.IsZero() {
		// No predecessor and no fallback cost resolved upstream.
		return chain, nil, ErrMissingCostPool
	}

	chain = append(chain, nil)
	copy(chain[at+1:], chain[at:])
	chain[at] = m

	corrections := recomputeFrom(logger, chain, at)
	return chain, corrections, nil
}

// VoidAndRecompute removes a movement and recomputes the remainder of the
// chain as if it never existed. Movements before the removal point keep
// their stored balances (the last of them is the cascade baseline; the
// zero sentinel when the chain's head itself was voided); everything from
// the removal point onward is reapplied.
func VoidAndRecompute(logger *logrus.Logger, chain []*models.InventoryMovement, movementId string) ([]*models.InventoryMovement, *models.InventoryMovement, []CogsCorrection, error) {
	at := -1
	for i, m := range chain {
		if m.ID == movementId {
			at = i
			break
		}
	}
	if at < 0 {
		return chain, nil, nil, ErrMovementNotFound
	}

	removed := chain[at]
	chain = append(chain[:at], chain[at+1:]...)

	corrections := recomputeFrom(logger, chain, at)
	return chain, removed, corrections, nil
}

// RecomputeChain reapplies the whole chain from a zero baseline. Used by
// the full rebuild path; unlike VoidAndRecompute it does not trust any
// stored balances.
func RecomputeChain(logger *logrus.Logger, chain []*models.InventoryMovement) []CogsCorrection {
	return recomputeFrom(logger, chain, 0)
}
