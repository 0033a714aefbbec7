package models

import (
	"context"

	"bitbucket.org/harborfuel/erp_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func poolAverageCostCacheKey(key CostPoolKey) string {
	return "PoolAverageCost:" + key.String()
}

// GetPoolAverageCost returns the moving-average unit cost currently in
// effect for a pool (the AverageCost of the chain's last movement),
// cached in Redis. Zero when the pool has no movements.
func GetPoolAverageCost(ctx context.Context, db *gorm.DB, key CostPoolKey) (decimal.Decimal, error) {
	var cached string
	exists, err := config.GetRedisObject(poolAverageCostCacheKey(key), &cached)
	if err == nil && exists {
		if avg, perr := decimal.NewFromString(cached); perr == nil {
			return avg, nil
		}
	}

	var tail InventoryMovement
	err = db.WithContext(ctx).
		Where("company_id = ? AND product_id = ? AND terminal_id = ? AND lot_id = ?",
			key.CompanyId, key.ProductId, key.TerminalId, key.LotId).
		Order("movement_date DESC, is_outgoing DESC, seq DESC, id DESC").
		First(&tail).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	// Cache write is best-effort; the value was already read from the DB.
	if err := config.SetRedisObject(poolAverageCostCacheKey(key), tail.AverageCost.String(), 0); err != nil {
		config.LogError(nil, "averageCostCache.go", "GetPoolAverageCost", "cache average cost", key.String(), err)
	}
	return tail.AverageCost, nil
}

// InvalidatePoolAverageCost must be called after every chain mutation.
func InvalidatePoolAverageCost(key CostPoolKey) error {
	return config.RemoveRedisKey(poolAverageCostCacheKey(key))
}
