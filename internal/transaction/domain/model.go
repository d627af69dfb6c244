package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"gorm.io/datatypes"
)

// Transaction is the materialized view of one payment or refund resource.
type Transaction struct {
	ID                 snowflake.ID           `gorm:"primaryKey" json:"id"`
	ExternalID         string                 `gorm:"column:external_id;uniqueIndex" json:"transaction_id"`
	ParentExternalID   *string                `gorm:"column:parent_external_id" json:"parent_transaction_id,omitempty"`
	GatewayAccountID   string                 `gorm:"column:gateway_account_id" json:"gateway_account_id"`
	TransactionType    string                 `gorm:"column:transaction_type" json:"transaction_type"`
	State              state.TransactionState `gorm:"column:state" json:"state"`
	Amount             *int64                 `gorm:"column:amount" json:"amount,omitempty"`
	Reference          string                 `gorm:"column:reference" json:"reference,omitempty"`
	Description        string                 `gorm:"column:description" json:"description,omitempty"`
	Email              string                 `gorm:"column:email" json:"email,omitempty"`
	CardholderName     string                 `gorm:"column:cardholder_name" json:"cardholder_name,omitempty"`
	CreatedDate        time.Time              `gorm:"column:created_date" json:"created_date"`
	TransactionDetails datatypes.JSON         `gorm:"column:transaction_details" json:"transaction_details"`
	EventCount         int                    `gorm:"column:event_count" json:"event_count"`
	UpdatedAt          time.Time              `gorm:"column:updated_at" json:"-"`
}

func (Transaction) TableName() string { return "transactions" }

// Details is the typed subset of the merged payload kept for display.
// Payload keys outside this struct are dropped.
type Details struct {
	Language         string          `json:"language,omitempty"`
	ReturnURL        string          `json:"return_url,omitempty"`
	PaymentProvider  string          `json:"payment_provider,omitempty"`
	DelayedCapture   *bool           `json:"delayed_capture,omitempty"`
	RefundedBy       string          `json:"refunded_by,omitempty"`
	ExternalMetadata map[string]any  `json:"external_metadata,omitempty"`
	BillingAddress   *BillingAddress `json:"billing_address,omitempty"`
}

type BillingAddress struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	City     string `json:"city,omitempty"`
	County   string `json:"county,omitempty"`
	Country  string `json:"country,omitempty"`
}

func (a BillingAddress) IsZero() bool {
	return a == BillingAddress{}
}
