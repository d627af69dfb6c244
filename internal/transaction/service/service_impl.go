package service

import (
	"context"
	"fmt"
	"strings"

	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	obsmetrics "github.com/smallbiznis/payledger/internal/observability/metrics"
	"github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"github.com/smallbiznis/payledger/pkg/db/pagination"
	"github.com/sourcegraph/conc"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("transaction.service"),
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	filter, page, err := s.validate(req)
	if err != nil {
		s.metrics.RecordSearch(ctx, "invalid")
		return domain.SearchResponse{}, err
	}

	var (
		items    []domain.Transaction
		total    int64
		findErr  error
		countErr error
		wg       conc.WaitGroup
	)
	wg.Go(func() {
		items, findErr = s.repo.Search(ctx, s.db, filter, page)
	})
	wg.Go(func() {
		total, countErr = s.repo.Count(ctx, s.db, filter)
	})
	wg.Wait()

	if findErr != nil || countErr != nil {
		s.metrics.RecordSearch(ctx, "error")
		err := findErr
		if err == nil {
			err = countErr
		}
		return domain.SearchResponse{}, fmt.Errorf("%w: search transactions: %w", eventdomain.ErrStoreUnavailable, err)
	}

	if items == nil {
		items = []domain.Transaction{}
	}
	s.metrics.RecordSearch(ctx, "ok")
	return domain.SearchResponse{
		Total:   total,
		Count:   len(items),
		Page:    page.Page,
		Results: items,
		Links:   pagination.BuildLinks(domain.SearchPath, filter.Query(), page, total),
	}, nil
}

func (s *Service) GetByExternalID(ctx context.Context, accountID, externalID string) (domain.Transaction, error) {
	accountID = strings.TrimSpace(accountID)
	externalID = strings.TrimSpace(externalID)
	if accountID == "" {
		return domain.Transaction{}, domain.ErrInvalidAccount
	}
	if externalID == "" {
		return domain.Transaction{}, domain.ErrInvalidExternalID
	}

	txn, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: find transaction: %w", eventdomain.ErrStoreUnavailable, err)
	}
	if txn == nil || txn.GatewayAccountID != accountID {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return *txn, nil
}

func (s *Service) validate(req domain.SearchRequest) (domain.SearchFilter, pagination.Pagination, error) {
	filter := domain.SearchFilter{
		AccountID:         strings.TrimSpace(req.AccountID),
		Reference:         strings.TrimSpace(req.Reference),
		Email:             strings.TrimSpace(req.Email),
		CardholderName:    strings.TrimSpace(req.CardholderName),
		FromDate:          req.FromDate,
		ToDate:            req.ToDate,
		FirstDigitsCardNo: strings.TrimSpace(req.FirstDigitsCardNo),
		LastDigitsCardNo:  strings.TrimSpace(req.LastDigitsCardNo),
	}
	if filter.AccountID == "" {
		return filter, pagination.Pagination{}, domain.ErrInvalidAccount
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return filter, pagination.Pagination{}, domain.ErrInvalidDateRange
	}

	var err error
	if filter.PaymentStates, err = parseStates(req.PaymentStates); err != nil {
		return filter, pagination.Pagination{}, err
	}
	if filter.RefundStates, err = parseStates(req.RefundStates); err != nil {
		return filter, pagination.Pagination{}, err
	}
	for _, brand := range req.CardBrands {
		if brand = strings.TrimSpace(brand); brand != "" {
			filter.CardBrands = append(filter.CardBrands, brand)
		}
	}

	if filter.FirstDigitsCardNo != "" && !isDigits(filter.FirstDigitsCardNo, 6) {
		return filter, pagination.Pagination{}, fmt.Errorf("%w: first_digits_card_number", domain.ErrInvalidCardDigits)
	}
	if filter.LastDigitsCardNo != "" && !isDigits(filter.LastDigitsCardNo, 4) {
		return filter, pagination.Pagination{}, fmt.Errorf("%w: last_digits_card_number", domain.ErrInvalidCardDigits)
	}

	if req.Page < 0 || req.Page > pagination.MaxPage {
		return filter, pagination.Pagination{}, domain.ErrInvalidPage
	}
	if req.DisplaySize < 0 || req.DisplaySize > pagination.MaxPageSize {
		return filter, pagination.Pagination{}, domain.ErrInvalidDisplaySize
	}
	page := pagination.Pagination{Page: req.Page, PageSize: req.DisplaySize}.Normalize()
	return filter, page, nil
}

func parseStates(raw []string) ([]state.TransactionState, error) {
	var out []state.TransactionState
	seen := map[state.TransactionState]struct{}{}
	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		s, ok := state.Parse(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidState, value)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
