package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	txdomain "github.com/smallbiznis/payledger/internal/transaction/domain"
)

func (s *Server) SearchTransactions(c *gin.Context) {
	var query struct {
		AccountID         string `form:"account_id"`
		Reference         string `form:"reference"`
		Email             string `form:"email"`
		CardholderName    string `form:"cardholder_name"`
		FromDate          string `form:"from_date"`
		ToDate            string `form:"to_date"`
		FirstDigitsCardNo string `form:"first_digits_card_number"`
		LastDigitsCardNo  string `form:"last_digits_card_number"`
		Page              string `form:"page"`
		DisplaySize       string `form:"display_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fromDate, err := parseOptionalTime(query.FromDate, false)
	if err != nil {
		AbortWithError(c, txdomain.ErrInvalidFromDate)
		return
	}
	toDate, err := parseOptionalTime(query.ToDate, true)
	if err != nil {
		AbortWithError(c, txdomain.ErrInvalidToDate)
		return
	}
	page, err := parseOptionalPositiveInt(query.Page)
	if err != nil {
		AbortWithError(c, txdomain.ErrInvalidPage)
		return
	}
	displaySize, err := parseOptionalPositiveInt(query.DisplaySize)
	if err != nil {
		AbortWithError(c, txdomain.ErrInvalidDisplaySize)
		return
	}

	resp, err := s.transactionSvc.Search(c.Request.Context(), txdomain.SearchRequest{
		AccountID:         strings.TrimSpace(query.AccountID),
		Reference:         strings.TrimSpace(query.Reference),
		Email:             strings.TrimSpace(query.Email),
		CardholderName:    strings.TrimSpace(query.CardholderName),
		FromDate:          fromDate,
		ToDate:            toDate,
		PaymentStates:     parseCSV(c.QueryArray("payment_states")),
		RefundStates:      parseCSV(c.QueryArray("refund_states")),
		CardBrands:        parseCSV(c.QueryArray("card_brand")),
		FirstDigitsCardNo: strings.TrimSpace(query.FirstDigitsCardNo),
		LastDigitsCardNo:  strings.TrimSpace(query.LastDigitsCardNo),
		Page:              page,
		DisplaySize:       displaySize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetTransaction(c *gin.Context) {
	resp, err := s.transactionSvc.GetByExternalID(
		c.Request.Context(),
		strings.TrimSpace(c.Query("account_id")),
		strings.TrimSpace(c.Param("id")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func isTransactionValidationError(err error) bool {
	for _, target := range []error{
		txdomain.ErrInvalidAccount,
		txdomain.ErrInvalidFromDate,
		txdomain.ErrInvalidToDate,
		txdomain.ErrInvalidDateRange,
		txdomain.ErrInvalidState,
		txdomain.ErrInvalidPage,
		txdomain.ErrInvalidDisplaySize,
		txdomain.ErrInvalidCardDigits,
		txdomain.ErrInvalidExternalID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
