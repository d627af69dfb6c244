package domain

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/payledger/internal/transaction/state"
	"github.com/smallbiznis/payledger/pkg/db/pagination"
)

const SearchPath = "/v1/transaction"

type SearchRequest struct {
	AccountID         string
	Reference         string
	Email             string
	CardholderName    string
	FromDate          *time.Time
	ToDate            *time.Time
	PaymentStates     []string
	RefundStates      []string
	CardBrands        []string
	FirstDigitsCardNo string
	LastDigitsCardNo  string
	Page              int
	DisplaySize       int
}

// SearchFilter is the validated predicate shared by the page and count queries.
// Card brands and first/last card digits are carried for link building only;
// no stored column backs them yet.
type SearchFilter struct {
	AccountID         string
	Reference         string
	Email             string
	CardholderName    string
	FromDate          *time.Time
	ToDate            *time.Time
	PaymentStates     []state.TransactionState
	RefundStates      []state.TransactionState
	CardBrands        []string
	FirstDigitsCardNo string
	LastDigitsCardNo  string
}

// Query renders the filter as URL parameters for pagination links.
func (f SearchFilter) Query() url.Values {
	q := url.Values{}
	q.Set("account_id", f.AccountID)
	setIf := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	setIf("reference", f.Reference)
	setIf("email", f.Email)
	setIf("cardholder_name", f.CardholderName)
	if f.FromDate != nil {
		q.Set("from_date", f.FromDate.UTC().Format(time.RFC3339Nano))
	}
	if f.ToDate != nil {
		q.Set("to_date", f.ToDate.UTC().Format(time.RFC3339Nano))
	}
	setIf("payment_states", joinStates(f.PaymentStates))
	setIf("refund_states", joinStates(f.RefundStates))
	setIf("card_brand", strings.Join(f.CardBrands, ","))
	setIf("first_digits_card_number", f.FirstDigitsCardNo)
	setIf("last_digits_card_number", f.LastDigitsCardNo)
	return q
}

func joinStates(states []state.TransactionState) string {
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

type SearchResponse struct {
	Total   int64            `json:"total"`
	Count   int              `json:"count"`
	Page    int              `json:"page"`
	Results []Transaction    `json:"results"`
	Links   pagination.Links `json:"_links"`
}

type Service interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	GetByExternalID(ctx context.Context, accountID, externalID string) (Transaction, error)
}

var (
	ErrInvalidAccount     = errors.New("invalid_account_id")
	ErrInvalidFromDate    = errors.New("invalid_from_date")
	ErrInvalidToDate      = errors.New("invalid_to_date")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrInvalidState       = errors.New("invalid_state")
	ErrInvalidPage        = errors.New("invalid_page")
	ErrInvalidDisplaySize = errors.New("invalid_display_size")
	ErrInvalidCardDigits  = errors.New("invalid_card_digits")
	ErrInvalidExternalID  = errors.New("invalid_external_id")
	ErrNotFound           = errors.New("not_found")
)
