package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"bitbucket.org/harborfuel/erp_backend/models"
	"gorm.io/gorm"
)

// ChainLock serializes mutations of one cost-pool chain across instances
// using MySQL advisory locks. Every insert and void reads the full chain
// and rewrites its tail, so two interleaved writers would lose updates.
//
// GET_LOCK is connection-scoped, so the lock pins a dedicated connection
// from the pool and holds it until Release. The holder must release only
// after the chain transaction has committed; releasing earlier would let
// a competing writer read a pre-commit snapshot of the chain.
type ChainLock struct {
	conn *sql.Conn
	name string
}

// AcquireChainLock takes the pool's advisory lock on a dedicated
// connection of the root db handle (not a transaction).
func AcquireChainLock(ctx context.Context, db *gorm.DB, key models.CostPoolKey) (*ChainLock, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("invchain:%s", key.String())
	var ok int
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 30)", name).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ok != 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("could not acquire chain lock for pool=%s", key.String())
	}
	return &ChainLock{conn: conn, name: name}, nil
}

// Release frees the advisory lock and returns its connection to the pool.
func (l *ChainLock) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	var ok int
	_ = l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&ok)
	_ = l.conn.Close()
	l.conn = nil
}
