package workflow

import (
	"context"
	"time"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RebuildPool reapplies one pool's chain, rewriting stored balances and
// reconciling posted journals. A zero `from` replays everything from the
// zero baseline (trusting nothing that is stored); a nonzero `from`
// replays only movements dated at or after it, seeded from the stored
// balances of the last movement before that date. Used for backfills and
// for repairing drift after manual data fixes.
//
// The pool's advisory lock is held on a dedicated connection across the
// rebuild transaction and released only after it returns.
func RebuildPool(ctx context.Context, db *gorm.DB, logger *logrus.Logger, key models.CostPoolKey, from time.Time) (int, error) {
	if logger == nil {
		logger = config.GetLogger()
	}

	lock, err := AcquireChainLock(ctx, db, key)
	if err != nil {
		return 0, err
	}
	defer lock.Release(ctx)

	recomputed := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		ledger := NewLedgerStore(tx)
		chain, err := ledger.LoadChain(ctx, key)
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			return nil
		}

		start := 0
		if !from.IsZero() {
			for start < len(chain) && chain[start].MovementDate.Before(from) {
				start++
			}
			if start == len(chain) {
				return nil
			}
		}

		logger.WithFields(logrus.Fields{
			"pool":      key.String(),
			"movements": len(chain) - start,
			"from":      from.Format(time.RFC3339),
		}).Info("inv.rebuild.start")

		corrections := recomputeFrom(logger, chain, start)

		if err := ledger.Persist(ctx, chain[start:], nil); err != nil {
			return err
		}
		if err := syncJournalCorrections(ctx, NewJournalStore(tx), logger, key.CompanyId, corrections); err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"pool":        key.String(),
			"movements":   len(chain) - start,
			"corrections": len(corrections),
		}).Info("inv.rebuild.end")
		recomputed = len(chain) - start
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recomputed, nil
}

// RebuildCompanyPools rebuilds every cost pool of a company, one
// transaction per pool so a failure leaves earlier pools committed.
func RebuildCompanyPools(ctx context.Context, db *gorm.DB, logger *logrus.Logger, companyId string) (int, error) {
	keys, err := NewLedgerStore(db).ListPoolKeys(ctx, companyId)
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	for _, key := range keys {
		if _, err := RebuildPool(ctx, db, logger, key, time.Time{}); err != nil {
			config.LogError(logger, "inventoryRebuild.go", "RebuildCompanyPools", "rebuild pool", key.String(), err)
			return rebuilt, err
		}
		if err := models.InvalidatePoolAverageCost(key); err != nil {
			config.LogError(logger, "inventoryRebuild.go", "RebuildCompanyPools", "invalidate average cost cache", key.String(), err)
		}
		rebuilt++
	}
	return rebuilt, nil
}
