package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	orderdb "ms-registration/internal/order/db"
	"ms-registration/internal/tickets"
	"ms-registration/internal/tickets/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Order)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create orders table: %v", err)
	}
	_, err = bunDB.NewCreateTable().Model((*models.Ticket)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create tickets table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertOrder(t *testing.T, bunDB *bun.DB, status string) models.Order {
	t.Helper()
	order := models.Order{
		OrderID:       uuid.New().String(),
		FullName:      "Dr. Asha Rao",
		Email:         "asha.rao@example.com",
		Phone:         "9876543210",
		TierLabel:     "Early Bird",
		BaseAmount:    500000,
		TaxAmount:     90000,
		TotalAmount:   590000,
		Currency:      "INR",
		Status:        status,
		PaymentMethod: models.PaymentMethodRazorpay,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&order).Exec(context.Background())
	require.NoError(t, err)
	return order
}

func TestCreateAndGetTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := insertOrder(t, bunDB, models.StatusPaid)

	testTicket := models.Ticket{
		TicketID: uuid.New().String(),
		OrderID:  order.OrderID,
		Code:     "TKT-" + order.OrderID + "-1-abcd",
		IssuedAt: time.Now(),
	}

	err := ticketDB.CreateTicket(testTicket)
	assert.NoError(t, err)

	ticket, err := ticketDB.GetTicketByCode(testTicket.Code)
	assert.NoError(t, err)
	assert.Equal(t, testTicket.TicketID, ticket.TicketID)
	assert.False(t, ticket.IsUsed)

	ticket, err = ticketDB.GetTicketByOrder(order.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, testTicket.Code, ticket.Code)

	// Non-existent lookups map to the shared sentinel
	_, err = ticketDB.GetTicketByCode("TKT-nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = ticketDB.GetTicketByOrder("nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateTicketDuplicateOrder(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := insertOrder(t, bunDB, models.StatusPaid)

	first := models.Ticket{
		TicketID: uuid.New().String(),
		OrderID:  order.OrderID,
		Code:     "TKT-" + order.OrderID + "-1-abcd",
		IssuedAt: time.Now(),
	}
	require.NoError(t, ticketDB.CreateTicket(first))

	// A second ticket for the same order trips the unique constraint
	second := models.Ticket{
		TicketID: uuid.New().String(),
		OrderID:  order.OrderID,
		Code:     "TKT-" + order.OrderID + "-2-efgh",
		IssuedAt: time.Now(),
	}
	err := ticketDB.CreateTicket(second)
	assert.ErrorIs(t, err, db.ErrTicketExists)

	// The original row is untouched
	ticket, err := ticketDB.GetTicketByOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, first.TicketID, ticket.TicketID)
}

func TestRedeem(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := insertOrder(t, bunDB, models.StatusPaid)
	ticket := models.Ticket{
		TicketID: uuid.New().String(),
		OrderID:  order.OrderID,
		Code:     "TKT-" + order.OrderID + "-1-abcd",
		IssuedAt: time.Now(),
	}
	require.NoError(t, ticketDB.CreateTicket(ticket))

	firstScan := time.Now().Truncate(time.Second)
	redeemed, err := ticketDB.Redeem(ticket.TicketID, order.OrderID, firstScan)
	require.NoError(t, err)
	assert.True(t, redeemed)

	// The ticket is consumed and the order checked in
	stored, err := ticketDB.GetTicketByCode(ticket.Code)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed)
	require.NotNil(t, stored.UsedAt)

	var storedOrder models.Order
	require.NoError(t, bunDB.NewSelect().Model(&storedOrder).Where("order_id = ?", order.OrderID).Scan(context.Background()))
	assert.True(t, storedOrder.IsCheckedIn)
	require.NotNil(t, storedOrder.CheckInTime)

	// A second redeem loses and must not move used_at
	redeemed, err = ticketDB.Redeem(ticket.TicketID, order.OrderID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, redeemed)

	after, err := ticketDB.GetTicketByCode(ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, stored.UsedAt.Unix(), after.UsedAt.Unix())
}

// Two confirmations of the same order race through the real SQL layers. The
// conditional update and the unique constraint must leave exactly one paid
// transition and one ticket row.
func TestConcurrentSettlementsIssueOneTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	// The pool would hand each connection its own :memory: database
	bunDB.SetMaxOpenConns(1)

	order := insertOrder(t, bunDB, models.StatusPendingPayment)
	orderDB := &orderdb.DB{Bun: bunDB}

	log := logger.NewLogger()
	t.Cleanup(func() { log.Close() })
	svc := tickets.NewTicketService(ticketDB, orderDB, nil, log)

	var wins int32
	codes := make(chan string, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(paymentRef string) {
			defer wg.Done()

			updated, err := orderDB.MarkPaid(order.OrderID, paymentRef)
			if err != nil {
				t.Errorf("MarkPaid(%s): %v", paymentRef, err)
				return
			}
			if updated {
				atomic.AddInt32(&wins, 1)
			}

			current, err := orderDB.GetOrderByID(order.OrderID)
			if err != nil {
				t.Errorf("GetOrderByID: %v", err)
				return
			}
			ticket, err := svc.Issue(*current)
			if err != nil {
				t.Errorf("Issue: %v", err)
				return
			}
			codes <- ticket.Code
		}(fmt.Sprintf("pay_%d", i))
	}
	wg.Wait()
	close(codes)

	assert.Equal(t, int32(1), atomic.LoadInt32(&wins), "exactly one caller wins the paid transition")

	first := <-codes
	for code := range codes {
		assert.Equal(t, first, code, "both callers must end up holding the same ticket")
	}

	count, err := bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("order_id = ?", order.OrderID).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
