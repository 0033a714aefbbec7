package workflow

import (
	"context"

	"bitbucket.org/harborfuel/erp_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore is the persistence boundary of the movement chain. The
// engine never touches it; the recorder and the void handler drive it
// inside one transaction per operation.
type LedgerStore interface {
	// LoadChain returns the pool's full chain in chronological order
	// (date, incoming before outgoing, seq, id).
	LoadChain(ctx context.Context, key models.CostPoolKey) ([]*models.InventoryMovement, error)

	// NextSeq returns the next insertion sequence number for the pool.
	NextSeq(ctx context.Context, key models.CostPoolKey) (int, error)

	// Persist writes every inserted/recomputed movement and removes the
	// voided one (nil when nothing was removed) as one unit of work.
	Persist(ctx context.Context, upserted []*models.InventoryMovement, removed *models.InventoryMovement) error

	FindMovement(ctx context.Context, companyId string, movementId string) (*models.InventoryMovement, error)

	// ListPoolKeys enumerates every distinct cost pool of a company, for
	// full rebuilds.
	ListPoolKeys(ctx context.Context, companyId string) ([]models.CostPoolKey, error)
}

type gormLedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore binds a LedgerStore to a gorm handle, usually an open
// transaction.
func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &gormLedgerStore{db: db}
}

func (s *gormLedgerStore) LoadChain(ctx context.Context, key models.CostPoolKey) ([]*models.InventoryMovement, error) {
	var chain []*models.InventoryMovement
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND product_id = ? AND terminal_id = ? AND lot_id = ?",
			key.CompanyId, key.ProductId, key.TerminalId, key.LotId).
		Order("movement_date ASC, is_outgoing ASC, seq ASC, id ASC").
		Find(&chain).Error
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *gormLedgerStore) NextSeq(ctx context.Context, key models.CostPoolKey) (int, error) {
	var maxSeq int
	err := s.db.WithContext(ctx).
		Model(&models.InventoryMovement{}).
		Where("company_id = ? AND product_id = ? AND terminal_id = ? AND lot_id = ?",
			key.CompanyId, key.ProductId, key.TerminalId, key.LotId).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func (s *gormLedgerStore) Persist(ctx context.Context, upserted []*models.InventoryMovement, removed *models.InventoryMovement) error {
	if len(upserted) > 0 {
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&upserted).Error
		if err != nil {
			return err
		}
	}
	if removed != nil {
		err := s.db.WithContext(ctx).
			Where("company_id = ?", removed.CompanyId).
			Delete(&models.InventoryMovement{}, "id = ?", removed.ID).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *gormLedgerStore) FindMovement(ctx context.Context, companyId string, movementId string) (*models.InventoryMovement, error) {
	var m models.InventoryMovement
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, movementId).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *gormLedgerStore) ListPoolKeys(ctx context.Context, companyId string) ([]models.CostPoolKey, error) {
	var keys []models.CostPoolKey
	err := s.db.WithContext(ctx).
		Model(&models.InventoryMovement{}).
		Distinct("company_id", "product_id", "terminal_id", "lot_id").
		Where("company_id = ?", companyId).
		Order("product_id, terminal_id, lot_id").
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
