package workflow

import (
	"context"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
	"bitbucket.org/harborfuel/erp_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JournalStore is the narrow view of the general ledger the costing core
// needs: find the COGS / inventory-asset lines posted for a document
// reference, and correct an amount in place.
type JournalStore interface {
	// FindCostingLines returns every journal line tagged with a costing
	// account role whose parent journal carries the given reference.
	FindCostingLines(ctx context.Context, companyId string, referenceId string) ([]*models.JournalTransaction, error)

	// CorrectAmount overwrites the line's amount on whichever side (debit
	// or credit) currently holds it. The side never flips.
	CorrectAmount(ctx context.Context, line *models.JournalTransaction, amount decimal.Decimal) error
}

type gormJournalStore struct {
	db *gorm.DB
}

func NewJournalStore(db *gorm.DB) JournalStore {
	return &gormJournalStore{db: db}
}

func (s *gormJournalStore) FindCostingLines(ctx context.Context, companyId string, referenceId string) ([]*models.JournalTransaction, error) {
	var lines []*models.JournalTransaction
	err := s.db.WithContext(ctx).
		Model(&models.JournalTransaction{}).
		Joins("JOIN journals ON journals.id = journal_transactions.journal_id").
		Where("journals.company_id = ? AND journals.reference_number = ?", companyId, referenceId).
		Where("journal_transactions.account_role IN ?",
			[]models.AccountRole{models.AccountRoleCogs, models.AccountRoleInventoryAsset}).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *gormJournalStore) CorrectAmount(ctx context.Context, line *models.JournalTransaction, amount decimal.Decimal) error {
	debit, credit := decimal.Zero, amount
	if line.IsDebit() {
		debit, credit = amount, decimal.Zero
	}
	err := s.db.WithContext(ctx).
		Model(&models.JournalTransaction{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{"debit": debit, "credit": credit}).Error
	if err != nil {
		return err
	}
	line.Debit = debit
	line.Credit = credit
	return nil
}

// syncJournalCorrections reconciles posted ledger lines with the cost
// corrections a cascade emitted. A reference with no posted lines is
// skipped silently (the journal may legitimately not exist yet); a line
// already within tolerance of the new amount is left untouched.
func syncJournalCorrections(ctx context.Context, js JournalStore, logger *logrus.Logger, companyId string, corrections []CogsCorrection) error {
	for _, c := range corrections {
		lines, err := js.FindCostingLines(ctx, companyId, c.ReferenceId)
		if err != nil {
			config.LogError(logger, "workflow", "syncJournalCorrections", "find costing lines", c.ReferenceId, err)
			return err
		}
		for _, line := range lines {
			if utils.WithinTolerance(line.Amount(), c.Amount) {
				continue
			}
			if err := js.CorrectAmount(ctx, line, c.Amount); err != nil {
				config.LogError(logger, "workflow", "syncJournalCorrections", "correct amount", c.ReferenceId, err)
				return err
			}
		}
	}
	return nil
}
