package service_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	"github.com/smallbiznis/payledger/internal/migration"
	"github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/internal/transaction/repository"
	"github.com/smallbiznis/payledger/internal/transaction/service"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"github.com/smallbiznis/payledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var day = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func TestSearchPagination(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seed(t, db, 19)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		AccountID:   "acct_1",
		Page:        3,
		DisplaySize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(19), resp.Total)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 3, resp.Page)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "reference15", resp.Results[0].Reference)
	assert.Equal(t, "reference14", resp.Results[1].Reference)

	assert.Equal(t, "/v1/transaction?account_id=acct_1&display_size=2&page=3", resp.Links.Self.Href)
	assert.Equal(t, "/v1/transaction?account_id=acct_1&display_size=2&page=1", resp.Links.FirstPage.Href)
	assert.Equal(t, "/v1/transaction?account_id=acct_1&display_size=2&page=10", resp.Links.LastPage.Href)
	require.NotNil(t, resp.Links.PrevPage)
	assert.Equal(t, "/v1/transaction?account_id=acct_1&display_size=2&page=2", resp.Links.PrevPage.Href)
	require.NotNil(t, resp.Links.NextPage)
	assert.Equal(t, "/v1/transaction?account_id=acct_1&display_size=2&page=4", resp.Links.NextPage.Href)
}

func TestSearchDefaultsAndEmptyResult(t *testing.T) {
	svc := newService(setupTestDB(t))

	resp, err := svc.Search(context.Background(), domain.SearchRequest{AccountID: "acct_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Nil(t, resp.Links.PrevPage)
	assert.Nil(t, resp.Links.NextPage)
	assert.Contains(t, resp.Links.Self.Href, "display_size=500")
}

func TestSearchEchoesFilterInLinks(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seed(t, db, 3)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		AccountID:         "acct_1",
		Email:             "a1",
		PaymentStates:     []string{"CREATED", "created"},
		CardBrands:        []string{"visa", " "},
		FirstDigitsCardNo: "424242",
		LastDigitsCardNo:  "4242",
	})
	require.NoError(t, err)

	u, err := url.Parse(resp.Links.Self.Href)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "a1", q.Get("email"))
	assert.Equal(t, "created", q.Get("payment_states"))
	assert.Equal(t, "visa", q.Get("card_brand"))
	assert.Equal(t, "424242", q.Get("first_digits_card_number"))
	assert.Equal(t, "4242", q.Get("last_digits_card_number"))
}

func TestSearchLinksKeepDatePrecision(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seed(t, db, 3)

	late := domain.Transaction{
		ID:                 snowflake.ID(100),
		ExternalID:         "pay_late",
		GatewayAccountID:   "acct_1",
		TransactionType:    string(eventdomain.ResourceTypePayment),
		State:              state.StateCreated,
		CreatedDate:        time.Date(2024, 4, 10, 23, 59, 59, int(500*time.Millisecond), time.UTC),
		TransactionDetails: datatypes.JSON(`{}`),
		EventCount:         1,
		UpdatedAt:          day,
	}
	_, err := repository.Provide().Upsert(context.Background(), db, &late)
	require.NoError(t, err)

	from := time.Date(2024, 4, 10, 10, 0, 0, int(500*time.Millisecond), time.UTC)
	to := time.Date(2024, 4, 10, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		AccountID:   "acct_1",
		FromDate:    &from,
		ToDate:      &to,
		DisplaySize: 1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), resp.Total)
	require.NotNil(t, resp.Links.NextPage)

	u, err := url.Parse(resp.Links.NextPage.Href)
	require.NoError(t, err)
	q := u.Query()

	gotFrom, err := time.Parse(time.RFC3339Nano, q.Get("from_date"))
	require.NoError(t, err)
	gotTo, err := time.Parse(time.RFC3339Nano, q.Get("to_date"))
	require.NoError(t, err)
	assert.True(t, gotFrom.Equal(from), "from_date %s", q.Get("from_date"))
	assert.True(t, gotTo.Equal(to), "to_date %s", q.Get("to_date"))

	next, err := svc.Search(context.Background(), domain.SearchRequest{
		AccountID:   "acct_1",
		FromDate:    &gotFrom,
		ToDate:      &gotTo,
		Page:        2,
		DisplaySize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, resp.Total, next.Total)
}

func TestSearchValidation(t *testing.T) {
	svc := newService(setupTestDB(t))
	from := day
	to := day.Add(-time.Hour)

	cases := []struct {
		name string
		req  domain.SearchRequest
		want error
	}{
		{name: "missing_account", req: domain.SearchRequest{}, want: domain.ErrInvalidAccount},
		{name: "reversed_dates", req: domain.SearchRequest{AccountID: "a", FromDate: &from, ToDate: &to}, want: domain.ErrInvalidDateRange},
		{name: "unknown_state", req: domain.SearchRequest{AccountID: "a", RefundStates: []string{"paid"}}, want: domain.ErrInvalidState},
		{name: "negative_page", req: domain.SearchRequest{AccountID: "a", Page: -1}, want: domain.ErrInvalidPage},
		{name: "page_past_max", req: domain.SearchRequest{AccountID: "a", Page: pagination.MaxPage + 1}, want: domain.ErrInvalidPage},
		{name: "display_size_too_large", req: domain.SearchRequest{AccountID: "a", DisplaySize: 501}, want: domain.ErrInvalidDisplaySize},
		{name: "first_digits_length", req: domain.SearchRequest{AccountID: "a", FirstDigitsCardNo: "4242"}, want: domain.ErrInvalidCardDigits},
		{name: "last_digits_non_numeric", req: domain.SearchRequest{AccountID: "a", LastDigitsCardNo: "42a2"}, want: domain.ErrInvalidCardDigits},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSearchStoreUnavailable(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	require.NoError(t, db.Exec("DROP TABLE transactions").Error)

	_, err := svc.Search(context.Background(), domain.SearchRequest{AccountID: "acct_1"})
	assert.ErrorIs(t, err, eventdomain.ErrStoreUnavailable)
}

func TestGetByExternalID(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seed(t, db, 2)
	ctx := context.Background()

	txn, err := svc.GetByExternalID(ctx, "acct_1", "pay_2")
	require.NoError(t, err)
	assert.Equal(t, "reference2", txn.Reference)

	_, err = svc.GetByExternalID(ctx, "acct_other", "pay_2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByExternalID(ctx, "acct_1", "pay_404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByExternalID(ctx, "", "pay_2")
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)

	_, err = svc.GetByExternalID(ctx, "acct_1", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidExternalID)
}

func newService(db *gorm.DB) domain.Service {
	return service.New(service.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
}

func seed(t *testing.T, db *gorm.DB, n int) {
	t.Helper()

	repo := repository.Provide()
	for i := 1; i <= n; i++ {
		txn := domain.Transaction{
			ID:                 snowflake.ID(i),
			ExternalID:         fmt.Sprintf("pay_%d", i),
			GatewayAccountID:   "acct_1",
			TransactionType:    string(eventdomain.ResourceTypePayment),
			State:              state.StateCreated,
			Reference:          fmt.Sprintf("reference%d", i),
			Email:              fmt.Sprintf("a%d@example.com", i),
			CreatedDate:        day,
			TransactionDetails: datatypes.JSON(`{}`),
			EventCount:         1,
			UpdatedAt:          day,
		}
		_, err := repo.Upsert(context.Background(), db, &txn)
		require.NoError(t, err)
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
