package models_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/models"
	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/Verba-Org/mini-erp-experienceservice/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestOrderLifecycleEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "experienceservice_test")
	// No bucket configured: document upload must fail without affecting the
	// committed order state.
	t.Setenv("GCS_BUCKET", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	if err := models.SeedDemoData(ctx); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	engine := workflow.NewEngine(config.LoadDefaults(), logger)

	// 1) Create a sales order: 800 kingfisher for Ryan. Subtotal 800*150 =
	// 120000, GST 18% = 21600, total 141600.
	result := engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateSalesOrder,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "kingfisher", Quantity: decimal.NewFromInt(800)},
		},
	})
	if result.OrderReference == nil || *result.OrderReference != "SO-1" {
		t.Fatalf("expected order reference SO-1; got %+v (message: %s)", result.OrderReference, result.Message)
	}
	if !strings.Contains(result.Message, "SO-1") {
		t.Fatalf("create message should carry the order number; got %q", result.Message)
	}

	so1, err := models.GetOrderByDisplayNumber(ctx, db, "SO-1", false)
	if err != nil || so1 == nil {
		t.Fatalf("fetch SO-1: %v (order=%v)", err, so1)
	}
	if so1.Status != models.OrderStatusPending {
		t.Fatalf("expected SO-1 status PENDING; got %s", so1.Status)
	}
	mustEqual(t, "SO-1 subtotal", so1.SubtotalAmount, "120000")
	mustEqual(t, "SO-1 tax", so1.TaxAmount, "21600")
	mustEqual(t, "SO-1 total", so1.TotalAmount, "141600")
	mustEqual(t, "SO-1 balance", so1.BalanceAmount, "141600")
	mustEqual(t, "SO-1 paid", so1.PaidAmount, "0")
	if len(so1.Items) != 1 {
		t.Fatalf("expected 1 line item on SO-1; got %d", len(so1.Items))
	}
	mustEqual(t, "SO-1 item unit price snapshot", so1.Items[0].UnitPrice, "150")

	// 2) Numbers are sequential: the next order gets SO-2.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateSalesOrder,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "kingfisher", Quantity: decimal.NewFromInt(10)},
		},
	})
	if result.OrderReference == nil || *result.OrderReference != "SO-2" {
		t.Fatalf("expected order reference SO-2; got %+v (message: %s)", result.OrderReference, result.Message)
	}

	// 3) Fulfilling SO-1 must fail: 800 requested, only 50 in stock. The
	// whole transaction rolls back, stock and status untouched.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateFulfillment,
		OrderNumber: "SO-1",
	})
	if !strings.Contains(strings.ToLower(result.Message), "insufficient") {
		t.Fatalf("expected an insufficient-stock message; got %q", result.Message)
	}
	mustHaveStock(t, ctx, "kingfisher", "50")
	so1, _ = models.GetOrderByDisplayNumber(ctx, db, "SO-1", false)
	if so1.Status != models.OrderStatusPending {
		t.Fatalf("failed fulfillment must not change status; got %s", so1.Status)
	}

	// 4) Fulfilling SO-2 succeeds and decrements stock 50 -> 40.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateFulfillment,
		OrderNumber: "SO-2",
	})
	if !strings.Contains(result.Message, "DELIVERED") {
		t.Fatalf("expected a DELIVERED confirmation; got %q", result.Message)
	}
	mustHaveStock(t, ctx, "kingfisher", "40")

	// 5) Inventory check is a pure read: identical twice in a row.
	inventoryPayload := workflow.IntentPayload{
		Intent:            models.IntentCheckInventory,
		TargetProductName: "kingfisher",
	}
	first := engine.Process(ctx, &inventoryPayload)
	second := engine.Process(ctx, &inventoryPayload)
	if first.Message != second.Message {
		t.Fatalf("inventory check not idempotent: %q vs %q", first.Message, second.Message)
	}
	if !strings.Contains(first.Message, "kingfisher: 40 in stock") {
		t.Fatalf("expected kingfisher stock 40 in message; got %q", first.Message)
	}
	mustHaveStock(t, ctx, "kingfisher", "40")

	// 6) Status check resolves case-insensitively and is a pure read.
	statusPayload := workflow.IntentPayload{
		Intent:      models.IntentStatusCheck,
		OrderNumber: "so-2",
	}
	first = engine.Process(ctx, &statusPayload)
	second = engine.Process(ctx, &statusPayload)
	if first.Message != second.Message {
		t.Fatalf("status check not idempotent: %q vs %q", first.Message, second.Message)
	}
	if !strings.Contains(first.Message, "DELIVERED") {
		t.Fatalf("expected DELIVERED in status message; got %q", first.Message)
	}

	// 7) Partial payment on SO-2. Total 10*150*1.18 = 1770; paying 400 leaves
	// a 1370 balance and status PARTIALLY_PAID.
	amount := decimal.NewFromInt(400)
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:                models.IntentRecordPayment,
		OrderNumber:           "SO-2",
		CustomerPaymentAmount: &amount,
	})
	so2, _ := models.GetOrderByDisplayNumber(ctx, db, "SO-2", false)
	if so2.Status != models.OrderStatusPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID after partial payment; got %s (message: %s)", so2.Status, result.Message)
	}
	mustEqual(t, "SO-2 paid", so2.PaidAmount, "400")
	mustEqual(t, "SO-2 balance", so2.BalanceAmount, "1370")

	// 8) Paying the exact remaining balance settles the order.
	amount = decimal.RequireFromString("1370")
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:                models.IntentRecordPayment,
		OrderNumber:           "SO-2",
		CustomerPaymentAmount: &amount,
	})
	if !strings.Contains(result.Message, "PAID") {
		t.Fatalf("expected PAID confirmation; got %q", result.Message)
	}
	so2, _ = models.GetOrderByDisplayNumber(ctx, db, "SO-2", false)
	if so2.Status != models.OrderStatusPaid {
		t.Fatalf("expected PAID; got %s", so2.Status)
	}
	mustEqual(t, "SO-2 balance settled", so2.BalanceAmount, "0")

	// 9) Paying a settled order records nothing.
	amount = decimal.NewFromInt(50)
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:                models.IntentRecordPayment,
		OrderNumber:           "SO-2",
		CustomerPaymentAmount: &amount,
	})
	if !strings.Contains(result.Message, "already fully paid") {
		t.Fatalf("expected already-paid no-op message; got %q", result.Message)
	}
	so2, _ = models.GetOrderByDisplayNumber(ctx, db, "SO-2", false)
	mustEqual(t, "SO-2 paid unchanged", so2.PaidAmount, "1770")

	// 10) Invoicing SO-1 commits the INVOICED status even though document
	// upload fails (no bucket configured in this environment).
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateInvoice,
		OrderNumber: "SO-1",
	})
	if !strings.Contains(result.Message, "INVOICED") {
		t.Fatalf("expected INVOICED in invoice message; got %q", result.Message)
	}
	so1, _ = models.GetOrderByDisplayNumber(ctx, db, "SO-1", false)
	if so1.Status != models.OrderStatusInvoiced {
		t.Fatalf("expected SO-1 INVOICED; got %s", so1.Status)
	}

	// 11) An unresolvable product aborts the whole order.
	var ordersBefore int64
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&ordersBefore).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateSalesOrder,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "kingfisher", Quantity: decimal.NewFromInt(1)},
			{ProductName: "absinthe", Quantity: decimal.NewFromInt(2)},
		},
	})
	if !strings.Contains(result.Message, "absinthe") {
		t.Fatalf("expected the unresolved product name in the message; got %q", result.Message)
	}
	var ordersAfter int64
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&ordersAfter).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if ordersAfter != ordersBefore {
		t.Fatalf("a failed build must persist nothing: before=%d after=%d", ordersBefore, ordersAfter)
	}

	// 12) A lifecycle intent with no order number synthesizes a new order in
	// the same transaction. 2 tuborg = 260, +18% = 306.80; paying 100 leaves
	// 206.80 outstanding.
	amount = decimal.NewFromInt(100)
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:                models.IntentRecordPayment,
		PartyName:             "Ryan",
		CustomerPaymentAmount: &amount,
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "tuborg", Quantity: decimal.NewFromInt(2)},
		},
	})
	if result.OrderReference == nil || *result.OrderReference != "SO-3" {
		t.Fatalf("expected synthesized order SO-3; got %+v (message: %s)", result.OrderReference, result.Message)
	}
	if !strings.Contains(result.Message, "Created order SO-3") {
		t.Fatalf("expected creation notice in message; got %q", result.Message)
	}
	so3, _ := models.GetOrderByDisplayNumber(ctx, db, "SO-3", false)
	if so3 == nil || so3.Status != models.OrderStatusPartiallyPaid {
		t.Fatalf("expected SO-3 PARTIALLY_PAID; got %+v", so3)
	}
	mustEqual(t, "SO-3 total", so3.TotalAmount, "306.8")
	mustEqual(t, "SO-3 balance", so3.BalanceAmount, "206.8")

	// 13) A present-but-unknown order number is a lookup failure, never an
	// auto-create.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateFulfillment,
		OrderNumber: "SO-500",
	})
	if !strings.Contains(result.Message, "not found") {
		t.Fatalf("expected a not-found message for SO-500; got %q", result.Message)
	}
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentStatusCheck,
		OrderNumber: "SO-999",
	})
	if result.Message != "Order SO-999 not found." {
		t.Fatalf("expected not-found status message; got %q", result.Message)
	}

	// 14) The default customer backstops a missing party name.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent: models.IntentCreateSalesOrder,
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "Malibu Rum", Quantity: decimal.NewFromInt(3)},
		},
	})
	if result.OrderReference == nil {
		t.Fatalf("expected an order for the default customer; got %q", result.Message)
	}
	so4, _ := models.GetOrderByDisplayNumber(ctx, db, *result.OrderReference, false)
	var defaultParty models.Party
	if err := db.WithContext(ctx).Where("id = ?", so4.PartyId).First(&defaultParty).Error; err != nil {
		t.Fatalf("fetch party for default-customer order: %v", err)
	}
	if defaultParty.Name != "Anonymous Traders" {
		t.Fatalf("expected the default customer Anonymous Traders; got %q", defaultParty.Name)
	}

	// 15) The same product on two line items is validated against the
	// combined requirement: 30+30 kingfisher cannot ship from a stock of 40.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateSalesOrder,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "kingfisher", Quantity: decimal.NewFromInt(30)},
			{ProductName: "kingfisher", Quantity: decimal.NewFromInt(30)},
		},
	})
	if result.OrderReference == nil {
		t.Fatalf("create split-line order: %s", result.Message)
	}
	splitOrder := *result.OrderReference
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateFulfillment,
		OrderNumber: splitOrder,
	})
	if !strings.Contains(strings.ToLower(result.Message), "insufficient") {
		t.Fatalf("expected insufficient stock for combined 60 against 40; got %q", result.Message)
	}
	mustHaveStock(t, ctx, "kingfisher", "40")

	// 16) When stock covers the combined quantity, fulfillment decrements
	// once per product: 120+50 tuborg leaves 200-170 = 30.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateFulfillment,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "tuborg", Quantity: decimal.NewFromInt(120)},
			{ProductName: "tuborg", Quantity: decimal.NewFromInt(50)},
		},
	})
	if result.OrderReference == nil || !strings.Contains(result.Message, "DELIVERED") {
		t.Fatalf("expected split-line fulfillment to deliver; got %q", result.Message)
	}
	tuborgOrder := *result.OrderReference
	mustHaveStock(t, ctx, "tuborg", "30")

	// 17) Inventory check by order number reports stock for the order's
	// products.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCheckInventory,
		OrderNumber: tuborgOrder,
	})
	if result.OrderReference == nil || *result.OrderReference != tuborgOrder {
		t.Fatalf("expected inventory check to reference %s; got %+v", tuborgOrder, result.OrderReference)
	}
	if !strings.Contains(result.Message, "tuborg: 30 in stock") {
		t.Fatalf("expected tuborg stock 30 in message; got %q", result.Message)
	}

	// 18) PAID is terminal: neither fulfillment nor invoicing moves a
	// settled order.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateFulfillment,
		OrderNumber: "SO-2",
	})
	if !strings.Contains(result.Message, "already fully paid") {
		t.Fatalf("expected paid-order fulfillment no-op; got %q", result.Message)
	}
	mustHaveStock(t, ctx, "kingfisher", "40")
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:      models.IntentCreateInvoice,
		OrderNumber: "SO-2",
	})
	if !strings.Contains(result.Message, "already fully paid") {
		t.Fatalf("expected paid-order invoice no-op; got %q", result.Message)
	}
	so2, _ = models.GetOrderByDisplayNumber(ctx, db, "SO-2", false)
	if so2.Status != models.OrderStatusPaid {
		t.Fatalf("settled order must stay PAID; got %s", so2.Status)
	}
	mustEqual(t, "SO-2 paid after no-ops", so2.PaidAmount, "1770")
	mustEqual(t, "SO-2 balance after no-ops", so2.BalanceAmount, "0")

	// 19) Non-positive quantities never reach the books.
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&ordersBefore).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent:    models.IntentCreateSalesOrder,
		PartyName: "Ryan",
		LineItems: []workflow.PayloadLineItem{
			{ProductName: "kingfisher", Quantity: decimal.Zero},
		},
	})
	if !strings.Contains(result.Message, "must be positive") {
		t.Fatalf("expected a positive-quantity rejection; got %q", result.Message)
	}
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&ordersAfter).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if ordersAfter != ordersBefore {
		t.Fatalf("zero-quantity order must persist nothing: before=%d after=%d", ordersBefore, ordersAfter)
	}

	// 20) Invoicing with neither an order number nor line items creates
	// nothing and references nothing.
	result = engine.Process(ctx, &workflow.IntentPayload{
		Intent: models.IntentCreateInvoice,
	})
	if result.OrderReference != nil {
		t.Fatalf("expected no order reference for an empty invoice request; got %q", *result.OrderReference)
	}
	if !strings.Contains(result.Message, "line item") {
		t.Fatalf("expected line-item guidance; got %q", result.Message)
	}
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&ordersAfter).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if ordersAfter != ordersBefore {
		t.Fatalf("empty invoice request must persist nothing: before=%d after=%d", ordersBefore, ordersAfter)
	}
}

// BuildOrder rejects bad quantities before touching any storage, so this
// needs no database.
func TestBuildOrderRejectsNonPositiveQuantity(t *testing.T) {
	defaults := config.Defaults{
		CustomerName:     "Anonymous Traders",
		OrganizationName: "Selmel Liquors",
		Currency:         "INR",
	}
	for _, qty := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := models.BuildOrder(context.Background(), nil, defaults, &models.NewOrder{
			Intent:    models.IntentCreateSalesOrder,
			PartyName: "Ryan",
			LineItems: []models.NewOrderLineItem{
				{ProductName: "kingfisher", Quantity: qty},
			},
		})
		if err == nil {
			t.Fatalf("quantity %s: expected an error", qty.String())
		}
		if !errors.Is(err, utils.ErrorInvalidPayload) {
			t.Fatalf("quantity %s: expected an invalid-payload error; got %v", qty.String(), err)
		}
	}
}

func mustEqual(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func mustHaveStock(t *testing.T, ctx context.Context, productName, want string) {
	t.Helper()
	db := config.GetDB()
	product, err := models.ResolveProductByName(ctx, db, productName)
	if err != nil || product == nil {
		t.Fatalf("resolve product %s: %v", productName, err)
	}
	if !product.CurrentStock.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s stock %s; got %s", productName, want, product.CurrentStock.String())
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("experience-test-redis-%d", time.Now().UnixNano())
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
	// wait until ready
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
	name := fmt.Sprintf("experience-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=experienceservice_test",
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
	// wait until ready
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
	// Example: "127.0.0.1:49154\n"
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
