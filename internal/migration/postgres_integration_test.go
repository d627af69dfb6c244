//go:build integration

package migration_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/event/digest"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	eventrepo "github.com/smallbiznis/payledger/internal/event/repository"
	eventservice "github.com/smallbiznis/payledger/internal/event/service"
	"github.com/smallbiznis/payledger/internal/lock"
	"github.com/smallbiznis/payledger/internal/migration"
	txdomain "github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/internal/transaction/projector"
	txrepo "github.com/smallbiznis/payledger/internal/transaction/repository"
	txservice "github.com/smallbiznis/payledger/internal/transaction/service"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	pgContainer testcontainers.Container
	testDB      *gorm.DB
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "ledger"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	exitCode := 0
	if err := initialiseDatabase(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres integration tests skipped: %v\n", err)
	} else {
		exitCode = m.Run()
	}

	_ = pgContainer.Terminate(ctx)
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("host=%s user=postgres password=secret dbname=ledger port=%s sslmode=disable TimeZone=UTC", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := migration.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := migration.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("reapply migrations: %w", err)
	}
	testDB = db
	return nil
}

func TestPostgresLedgerFlow(t *testing.T) {
	ctx := context.Background()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(base)
	resolver := state.Default()

	store := eventservice.New(eventservice.Params{DB: testDB, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: eventrepo.Provide()})
	repo := txrepo.Provide()
	proj := projector.New(projector.Params{
		DB: testDB, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repo,
		Digests: digest.NewBuilder(store, resolver), Resolver: resolver, Locker: lock.NewLocalLocker(),
	})
	search := txservice.New(txservice.Params{DB: testDB, Log: zap.NewNop(), Repo: repo})

	events := []eventdomain.Event{
		{ResourceType: eventdomain.ResourceTypePayment, ResourceExternalID: "pg_pay_1", EventType: "PAYMENT_CREATED", EventDate: base,
			Payload: datatypes.JSON(`{"gateway_account_id":"acct_pg","amount":2500,"email":"A1@example.com","reference":"100%_sure"}`)},
		{ResourceType: eventdomain.ResourceTypePayment, ResourceExternalID: "pg_pay_1", EventType: "AUTHORISATION_REJECTED", EventDate: base.Add(time.Minute), Payload: datatypes.JSON(`{}`)},
	}
	for _, e := range append(events, events...) {
		event := e
		_, err := store.Record(ctx, &event)
		require.NoError(t, err)
		_, _, err = proj.Refresh(ctx, event.ResourceExternalID)
		require.NoError(t, err)
	}

	stored, err := store.Events(ctx, "pg_pay_1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	resp, err := search.Search(ctx, txdomain.SearchRequest{
		AccountID:     "acct_pg",
		Email:         "a1",
		Reference:     "%_",
		PaymentStates: []string{"DECLINED"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Total)
	assert.Equal(t, "pg_pay_1", resp.Results[0].ExternalID)
	assert.Equal(t, state.StateDeclined, resp.Results[0].State)
	assert.Equal(t, 2, resp.Results[0].EventCount)
}
