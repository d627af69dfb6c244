package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	txdomain "github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransactionService struct {
	lastSearch txdomain.SearchRequest
	searchErr  error
	txn        *txdomain.Transaction
	calls      int
}

func (f *fakeTransactionService) Search(ctx context.Context, req txdomain.SearchRequest) (txdomain.SearchResponse, error) {
	_ = ctx
	f.calls++
	f.lastSearch = req
	if f.searchErr != nil {
		return txdomain.SearchResponse{}, f.searchErr
	}
	return txdomain.SearchResponse{
		Total:   1,
		Count:   1,
		Page:    1,
		Results: []txdomain.Transaction{{ExternalID: "pay_1", GatewayAccountID: req.AccountID}},
		Links: pagination.Links{
			Self:      &pagination.Link{Href: "/v1/transaction?account_id=acct_1&display_size=500&page=1"},
			FirstPage: &pagination.Link{Href: "/v1/transaction?account_id=acct_1&display_size=500&page=1"},
			LastPage:  &pagination.Link{Href: "/v1/transaction?account_id=acct_1&display_size=500&page=1"},
		},
	}, nil
}

func (f *fakeTransactionService) GetByExternalID(ctx context.Context, accountID, externalID string) (txdomain.Transaction, error) {
	_ = ctx
	if accountID == "" {
		return txdomain.Transaction{}, txdomain.ErrInvalidAccount
	}
	if f.txn == nil || f.txn.ExternalID != externalID || f.txn.GatewayAccountID != accountID {
		return txdomain.Transaction{}, txdomain.ErrNotFound
	}
	return *f.txn, nil
}

func newTestRouter(svc txdomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv := &Server{engine: router, transactionSvc: svc}
	srv.registerAPIRoutes()
	srv.registerFallback()
	return router
}

func serve(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSearchTransactionsParsesQuery(t *testing.T) {
	svc := &fakeTransactionService{}
	router := newTestRouter(svc)

	resp := serve(router, "/v1/transaction?account_id=acct_1&email=a1&from_date=2024-01-01&to_date=2024-01-31"+
		"&payment_states=success,declined&refund_states=error&card_brand=visa&card_brand=master-card&page=2&display_size=10")
	require.Equal(t, http.StatusOK, resp.Code)

	req := svc.lastSearch
	assert.Equal(t, "acct_1", req.AccountID)
	assert.Equal(t, "a1", req.Email)
	assert.Equal(t, []string{"success", "declined"}, req.PaymentStates)
	assert.Equal(t, []string{"error"}, req.RefundStates)
	assert.Equal(t, []string{"visa", "master-card"}, req.CardBrands)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 10, req.DisplaySize)
	require.NotNil(t, req.FromDate)
	require.NotNil(t, req.ToDate)
	assert.True(t, req.FromDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 23, req.ToDate.Hour())

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
	assert.Contains(t, body, "_links")
	assert.Contains(t, body, "results")
}

func TestSearchTransactionsInvalidDateReturns400(t *testing.T) {
	svc := &fakeTransactionService{}
	router := newTestRouter(svc)

	resp := serve(router, "/v1/transaction?account_id=acct_1&from_date=yesterday")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, svc.calls)

	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Type)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_from_date", body.Error.Errors[0].Code)
	assert.Equal(t, "from_date", body.Error.Errors[0].Field)
}

func TestSearchTransactionsInvalidPageReturns400(t *testing.T) {
	router := newTestRouter(&fakeTransactionService{})

	for _, target := range []string{
		"/v1/transaction?account_id=acct_1&page=0",
		"/v1/transaction?account_id=acct_1&page=x",
		"/v1/transaction?account_id=acct_1&display_size=-1",
	} {
		resp := serve(router, target)
		assert.Equal(t, http.StatusBadRequest, resp.Code, target)
	}
}

func TestSearchTransactionsMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: txdomain.ErrInvalidAccount, status: http.StatusBadRequest, code: "invalid_account_id"},
		{err: txdomain.ErrInvalidDateRange, status: http.StatusBadRequest, code: "invalid_date_range"},
		{err: txdomain.ErrInvalidState, status: http.StatusBadRequest, code: "invalid_state"},
		{err: eventdomain.ErrStoreUnavailable, status: http.StatusServiceUnavailable},
		{err: context.DeadlineExceeded, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := newTestRouter(&fakeTransactionService{searchErr: tc.err})
		resp := serve(router, "/v1/transaction?account_id=acct_1")
		assert.Equal(t, tc.status, resp.Code, tc.err.Error())

		if tc.code != "" {
			var body errorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Len(t, body.Error.Errors, 1)
			assert.Equal(t, tc.code, body.Error.Errors[0].Code)
		}
	}
}

func TestGetTransaction(t *testing.T) {
	router := newTestRouter(&fakeTransactionService{
		txn: &txdomain.Transaction{ExternalID: "pay_1", GatewayAccountID: "acct_1"},
	})

	resp := serve(router, "/v1/transaction/pay_1?account_id=acct_1")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "pay_1", body["transaction_id"])

	assert.Equal(t, http.StatusNotFound, serve(router, "/v1/transaction/pay_1?account_id=acct_2").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/v1/transaction/pay_1").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, "/v2/unknown").Code)
}

func TestRateLimitedMapsTo429(t *testing.T) {
	status, payload := mapError(ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", payload.Type)
}

func TestDateOnlyToDateSurvivesLinkRoundTrip(t *testing.T) {
	to, err := parseOptionalTime("2024-04-10", true)
	require.NoError(t, err)

	q := txdomain.SearchFilter{AccountID: "acct_1", ToDate: to}.Query()
	again, err := parseOptionalTime(q.Get("to_date"), true)
	require.NoError(t, err)
	assert.True(t, again.Equal(*to), "to_date %s", q.Get("to_date"))
}
