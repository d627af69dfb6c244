package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/event/domain"
	"github.com/smallbiznis/payledger/internal/event/repository"
	"github.com/smallbiznis/payledger/internal/event/service"
	"github.com/smallbiznis/payledger/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestRecordDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := newStore(t, db)

	first := paymentEvent("pay_1", "PAYMENT_CREATED", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	result, err := store.Record(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, domain.InsertResultInserted, result)

	again := paymentEvent("pay_1", "PAYMENT_CREATED", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	result, err = store.Record(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, domain.InsertResultIgnored, result)

	assertCount(t, db, "SELECT COUNT(1) FROM events", 1)
	assert.Equal(t, first.DedupKey, again.DedupKey)
}

func TestRecordUsesMessageIDAsDedupKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := newStore(t, db)

	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := paymentEvent("pay_1", "PAYMENT_CREATED", date)
	a.DedupKey = "msg-1"
	b := paymentEvent("pay_1", "PAYMENT_CREATED", date)
	b.DedupKey = "msg-2"

	_, err := store.Record(ctx, &a)
	require.NoError(t, err)
	_, err = store.Record(ctx, &b)
	require.NoError(t, err)

	assertCount(t, db, "SELECT COUNT(1) FROM events", 2)
}

func TestRecordNormalizesAndValidates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, setupTestDB(t))

	cases := []struct {
		name  string
		event domain.Event
	}{
		{name: "missing_resource", event: domain.Event{EventType: "PAYMENT_CREATED", ResourceType: "payment", EventDate: time.Now()}},
		{name: "missing_type", event: domain.Event{ResourceExternalID: "pay_1", ResourceType: "payment", EventDate: time.Now()}},
		{name: "unknown_resource_type", event: domain.Event{ResourceExternalID: "pay_1", EventType: "X", ResourceType: "invoice", EventDate: time.Now()}},
		{name: "missing_date", event: domain.Event{ResourceExternalID: "pay_1", EventType: "X", ResourceType: "payment"}},
		{name: "array_payload", event: domain.Event{ResourceExternalID: "pay_1", EventType: "X", ResourceType: "payment", EventDate: time.Now(), Payload: datatypes.JSON(`[1]`)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.event
			_, err := store.Record(ctx, &event)
			assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		})
	}
}

func TestRecordLowercaseResourceType(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, setupTestDB(t))

	event := paymentEvent(" pay_1 ", "payment_created", time.Now())
	event.ResourceType = "payment"
	event.Payload = nil

	_, err := store.Record(ctx, &event)
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceTypePayment, event.ResourceType)
	assert.Equal(t, "PAYMENT_CREATED", event.EventType)
	assert.Equal(t, "pay_1", event.ResourceExternalID)
	assert.JSONEq(t, `{}`, string(event.Payload))
}

func TestEventsOrderedByEventDate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, setupTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, e := range []domain.Event{
		paymentEvent("pay_1", "AUTHORISATION_SUCCEEDED", base.Add(2*time.Minute)),
		paymentEvent("pay_1", "PAYMENT_CREATED", base),
		paymentEvent("pay_2", "PAYMENT_CREATED", base),
		paymentEvent("pay_1", "PAYMENT_STARTED", base.Add(time.Minute)),
	} {
		event := e
		_, err := store.Record(ctx, &event)
		require.NoError(t, err)
	}

	events, err := store.Events(ctx, "pay_1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "PAYMENT_CREATED", events[0].EventType)
	assert.Equal(t, "PAYMENT_STARTED", events[1].EventType)
	assert.Equal(t, "AUTHORISATION_SUCCEEDED", events[2].EventType)
	assert.True(t, events[0].EventDate.Equal(base))
	assert.JSONEq(t, `{"amount":1000}`, string(events[0].Payload))
}

func TestRecordStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := newStore(t, db)
	require.NoError(t, db.Exec("DROP TABLE events").Error)

	event := paymentEvent("pay_1", "PAYMENT_CREATED", time.Now())
	_, err := store.Record(ctx, &event)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = store.Events(ctx, "pay_1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func newStore(t *testing.T, db *gorm.DB) domain.Store {
	t.Helper()

	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func paymentEvent(externalID, eventType string, date time.Time) domain.Event {
	return domain.Event{
		ResourceType:       domain.ResourceTypePayment,
		ResourceExternalID: externalID,
		EventType:          eventType,
		EventDate:          date,
		Payload:            datatypes.JSON(`{"amount":1000}`),
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.ApplySQLiteSchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
