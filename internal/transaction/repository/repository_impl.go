package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/payledger/internal/event/domain"
	txdomain "github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() txdomain.Repository {
	return &repo{}
}

const transactionColumns = `id, external_id, parent_external_id, gateway_account_id, transaction_type, state,
	amount, reference, description, email, cardholder_name, created_date,
	transaction_details, event_count, updated_at`

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, txn *txdomain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			parent_external_id = excluded.parent_external_id,
			gateway_account_id = excluded.gateway_account_id,
			transaction_type = excluded.transaction_type,
			state = excluded.state,
			amount = excluded.amount,
			reference = excluded.reference,
			description = excluded.description,
			email = excluded.email,
			cardholder_name = excluded.cardholder_name,
			created_date = excluded.created_date,
			transaction_details = excluded.transaction_details,
			event_count = excluded.event_count,
			updated_at = excluded.updated_at
		WHERE transactions.event_count < excluded.event_count`,
		txn.ID,
		txn.ExternalID,
		txn.ParentExternalID,
		txn.GatewayAccountID,
		txn.TransactionType,
		txn.State,
		txn.Amount,
		txn.Reference,
		txn.Description,
		txn.Email,
		txn.CardholderName,
		txn.CreatedDate,
		txn.TransactionDetails,
		txn.EventCount,
		txn.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*txdomain.Transaction, error) {
	var txn txdomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+`
		 FROM transactions WHERE external_id = ?`,
		externalID,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, filter txdomain.SearchFilter, page pagination.Pagination) ([]txdomain.Transaction, error) {
	var items []txdomain.Transaction
	stmt := applyFilter(db.WithContext(ctx).Model(&txdomain.Transaction{}), filter)
	err := stmt.
		Order("id desc").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter txdomain.SearchFilter) (int64, error) {
	var total int64
	stmt := applyFilter(db.WithContext(ctx).Model(&txdomain.Transaction{}), filter)
	if err := stmt.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// applyFilter ignores card brands and card digits; no stored column backs them.
func applyFilter(stmt *gorm.DB, filter txdomain.SearchFilter) *gorm.DB {
	stmt = stmt.Where("gateway_account_id = ?", filter.AccountID)
	if filter.Reference != "" {
		stmt = stmt.Where(`LOWER(reference) LIKE ? ESCAPE '\'`, containsPattern(filter.Reference))
	}
	if filter.Email != "" {
		stmt = stmt.Where(`LOWER(email) LIKE ? ESCAPE '\'`, containsPattern(filter.Email))
	}
	if filter.CardholderName != "" {
		stmt = stmt.Where(`LOWER(cardholder_name) LIKE ? ESCAPE '\'`, containsPattern(filter.CardholderName))
	}
	if filter.FromDate != nil {
		stmt = stmt.Where("created_date >= ?", filter.FromDate.UTC())
	}
	if filter.ToDate != nil {
		stmt = stmt.Where("created_date <= ?", filter.ToDate.UTC())
	}

	payment := len(filter.PaymentStates) > 0
	refund := len(filter.RefundStates) > 0
	switch {
	case payment && refund:
		stmt = stmt.Where(
			"((transaction_type = ? AND state IN ?) OR (transaction_type = ? AND state IN ?))",
			domain.ResourceTypePayment, filter.PaymentStates,
			domain.ResourceTypeRefund, filter.RefundStates,
		)
	case payment:
		stmt = stmt.Where("transaction_type = ? AND state IN ?", domain.ResourceTypePayment, filter.PaymentStates)
	case refund:
		stmt = stmt.Where("transaction_type = ? AND state IN ?", domain.ResourceTypeRefund, filter.RefundStates)
	}
	return stmt
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(value)) + "%"
}
