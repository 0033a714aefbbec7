package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
	"bitbucket.org/harborfuel/erp_backend/utils"
	"bitbucket.org/harborfuel/erp_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end over real MySQL + Redis: event ingestion with duplicate
// delivery, backdated purchase cascade with journal correction, cached
// average cost, and void.
func TestInventoryEventFlow_EndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "harborfuel_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	logger := config.GetLogger()

	const companyId = "co-int-1"
	ctx = utils.SetCompanyIdInContext(ctx, companyId)

	product := &models.Product{
		CompanyId:          companyId,
		Name:               "Diesel",
		Sku:                "DSL-001",
		PurchasePrice:      decimal.NewFromInt(55),
		InventoryAccountId: 1,
		CogsAccountId:      2,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	terminal := &models.Terminal{CompanyId: companyId, Name: "Main Depot"}
	if err := db.Create(terminal).Error; err != nil {
		t.Fatalf("create terminal: %v", err)
	}
	lot := &models.PurchaseOrderLot{
		CompanyId:    companyId,
		ProductId:    product.ID,
		TerminalId:   terminal.ID,
		LotNumber:    "LOT-1",
		UnitPrice:    decimal.NewFromInt(50),
		ReceivedDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("create lot: %v", err)
	}

	key := models.CostPoolKey{CompanyId: companyId, ProductId: product.ID, TerminalId: terminal.ID, LotId: lot.ID}
	ledger := workflow.NewLedgerStore(db)

	event := func(messageId, kind, referenceId string, day int, qty, unitCost int64) config.InventoryEvent {
		return config.InventoryEvent{
			MessageId:    messageId,
			CompanyId:    companyId,
			Kind:         kind,
			ProductId:    product.ID,
			TerminalId:   terminal.ID,
			LotId:        lot.ID,
			Qty:          decimal.NewFromInt(qty),
			UnitCost:     decimal.NewFromInt(unitCost),
			MovementDate: time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			ReferenceId:  referenceId,
		}
	}

	// 1) Purchase received, delivered twice (at-least-once delivery).
	purchase1 := event("m-1", string(models.InventoryEventPurchaseReceived), "GRN-1", 1, 1000, 50)
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, purchase1); err != nil {
		t.Fatalf("process purchase: %v", err)
	}
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, purchase1); err != nil {
		t.Fatalf("process duplicate purchase: %v", err)
	}
	chain, err := ledger.LoadChain(ctx, key)
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("chain length after duplicate delivery = %d, want 1", len(chain))
	}

	// 2) Sale delivered; its COGS voucher was already posted by the AR system.
	journal := &models.Journal{
		CompanyId:       companyId,
		JournalNumber:   "JN-1",
		ReferenceNumber: "DR-1",
		JournalDate:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		TotalAmount:     decimal.NewFromInt(10000),
		Transactions: []models.JournalTransaction{
			{AccountId: product.CogsAccountId, AccountRole: models.AccountRoleCogs, Debit: decimal.NewFromInt(10000)},
			{AccountId: product.InventoryAccountId, AccountRole: models.AccountRoleInventoryAsset, Credit: decimal.NewFromInt(10000)},
		},
	}
	if err := db.Create(journal).Error; err != nil {
		t.Fatalf("create journal: %v", err)
	}

	sale := event("m-2", string(models.InventoryEventSaleDelivered), "DR-1", 3, 200, 0)
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, sale); err != nil {
		t.Fatalf("process sale: %v", err)
	}

	// 3) Backdated purchase cascades into the sale and corrects its voucher.
	purchase2 := event("m-3", string(models.InventoryEventPurchaseReceived), "GRN-2", 2, 500, 60)
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, purchase2); err != nil {
		t.Fatalf("process backdated purchase: %v", err)
	}

	chain, err = ledger.LoadChain(ctx, key)
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	saleMove := chain[2]
	if saleMove.Kind != models.MovementKindSale {
		t.Fatalf("chain[2] kind = %s, want sale last", saleMove.Kind)
	}
	if !utils.WithinTolerance(saleMove.UnitCost, decimal.NewFromFloat(53.3333)) {
		t.Fatalf("sale unit cost = %s, want ~53.3333", saleMove.UnitCost)
	}

	var cogsLine models.JournalTransaction
	if err := db.Where("journal_id = ? AND account_role = ?", journal.ID, models.AccountRoleCogs).First(&cogsLine).Error; err != nil {
		t.Fatalf("fetch cogs line: %v", err)
	}
	if !utils.WithinTolerance(cogsLine.Debit, decimal.NewFromFloat(10666.67)) || !cogsLine.Credit.IsZero() {
		t.Fatalf("cogs line = %s/%s, want ~10666.67 debit", cogsLine.Debit, cogsLine.Credit)
	}

	// 4) Cached average cost matches the chain tail.
	avg, err := models.GetPoolAverageCost(ctx, db, key)
	if err != nil {
		t.Fatalf("get pool average cost: %v", err)
	}
	if !avg.Equal(saleMove.AverageCost) {
		t.Fatalf("cached average cost = %s, want %s", avg, saleMove.AverageCost)
	}

	// 5) Void the first purchase; the sale reprices to the remaining lot cost.
	void := config.InventoryEvent{
		MessageId:  "m-4",
		CompanyId:  companyId,
		Kind:       string(models.InventoryEventMovementVoided),
		MovementId: chain[0].ID,
	}
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, void); err != nil {
		t.Fatalf("process void: %v", err)
	}

	chain, err = ledger.LoadChain(ctx, key)
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length after void = %d, want 2", len(chain))
	}
	if !chain[1].UnitCost.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("sale unit cost after void = %s, want 60", chain[1].UnitCost)
	}
	if err := db.Where("journal_id = ? AND account_role = ?", journal.ID, models.AccountRoleCogs).First(&cogsLine).Error; err != nil {
		t.Fatalf("fetch cogs line: %v", err)
	}
	if !utils.WithinTolerance(cogsLine.Debit, decimal.NewFromInt(12000)) {
		t.Fatalf("cogs line after void = %s, want 12000", cogsLine.Debit)
	}

	// 6) A failing event rolls back its transaction but still leaves a
	// durable FAILED idempotency row with the error message.
	badSale := event("m-5", string(models.InventoryEventSaleDelivered), "DR-BAD", 4, 0, 0)
	if err := workflow.ProcessInventoryEvent(ctx, db, logger, badSale); err == nil {
		t.Fatalf("expected error for zero-quantity sale")
	}
	var idem models.IdempotencyKey
	if err := db.Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, "InventoryEvent", "m-5").
		First(&idem).Error; err != nil {
		t.Fatalf("fetch idempotency row: %v", err)
	}
	if idem.Status != models.IdempotencyStatusFailed {
		t.Fatalf("idempotency status = %s, want FAILED", idem.Status)
	}
	if idem.LastError == nil || *idem.LastError == "" {
		t.Fatalf("idempotency last_error is empty, want the failure message")
	}

	// 7) Every advisory lock taken along the way has been released.
	var free int
	if err := db.Raw("SELECT IS_FREE_LOCK(?)", "invchain:"+key.String()).Scan(&free).Error; err != nil {
		t.Fatalf("check advisory lock: %v", err)
	}
	if free != 1 {
		t.Fatalf("chain lock for pool %s still held", key.String())
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("erp-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("erp-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=harborfuel_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
