package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
	"bitbucket.org/harborfuel/erp_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	productID := flag.Int("product-id", 0, "Optional: product id (requires --terminal-id)")
	terminalID := flag.Int("terminal-id", 0, "Optional: terminal id")
	lotID := flag.Int("lot-id", 0, "Optional: lot id (0 = pool not lot-scoped)")
	fromDateStr := flag.String("from", "", "Optional: rebuild from date (YYYY-MM-DD). Defaults to a full zero-baseline replay.")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing pools and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}
	var fromDate time.Time
	if strings.TrimSpace(*fromDateStr) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*fromDateStr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid from date: %v\n", err)
			os.Exit(1)
		}
		fromDate = d
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	logger := logrus.New()
	ctx := context.Background()

	// Best-effort guard against a concurrent rebuild of the same company.
	// Correctness does not depend on it: RebuildPool serializes per pool
	// via MySQL advisory locks.
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		l, err := locker.Obtain(ctx, fmt.Sprintf("lock:rebuild:%s", *companyID), 10*time.Minute, nil)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"company_id": *companyID,
			}).Warn("could not obtain redis rebuild lock; proceeding: " + err.Error())
		} else {
			lock = l
		}
	}
	defer func() {
		if lock != nil {
			_ = lock.Release(ctx)
		}
	}()

	if *productID > 0 || *terminalID > 0 || *lotID > 0 {
		if *productID <= 0 || *terminalID <= 0 {
			fmt.Fprintln(os.Stderr, "--product-id and --terminal-id must be set together")
			os.Exit(1)
		}
		key := models.CostPoolKey{CompanyId: *companyID, ProductId: *productID, TerminalId: *terminalID, LotId: *lotID}
		if _, err := workflow.RebuildPool(ctx, db, logger, key, fromDate); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed for pool %s: %v\n", key.String(), err)
			os.Exit(1)
		}
		if err := models.InvalidatePoolAverageCost(key); err != nil {
			logger.WithFields(logrus.Fields{"pool": key.String()}).
				Warn("failed to invalidate average cost cache: " + err.Error())
		}
		fmt.Printf("rebuilt pool %s\n", key.String())
		return
	}

	if !*continueOnError && fromDate.IsZero() {
		rebuilt, err := workflow.RebuildCompanyPools(ctx, db, logger, *companyID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed after %d pools: %v\n", rebuilt, err)
			os.Exit(1)
		}
		fmt.Printf("rebuilt %d pools\n", rebuilt)
		return
	}

	keys, err := workflow.NewLedgerStore(db).ListPoolKeys(ctx, *companyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list pools: %v\n", err)
		os.Exit(1)
	}
	failed := 0
	for _, key := range keys {
		if _, err := workflow.RebuildPool(ctx, db, logger, key, fromDate); err != nil {
			failed++
			if !*continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild failed for pool %s: %v\n", key.String(), err)
				os.Exit(1)
			}
			logger.WithFields(logrus.Fields{
				"pool": key.String(),
			}).Error("rebuild failed; continuing: " + err.Error())
			continue
		}
		if err := models.InvalidatePoolAverageCost(key); err != nil {
			logger.WithFields(logrus.Fields{"pool": key.String()}).
				Warn("failed to invalidate average cost cache: " + err.Error())
		}
	}
	fmt.Printf("rebuilt %d pools (%d failed)\n", len(keys)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
