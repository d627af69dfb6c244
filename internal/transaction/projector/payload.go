package projector

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/smallbiznis/payledger/internal/transaction/domain"
)

type fields map[string]any

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (f fields) int64(key string) *int64 {
	var (
		out int64
		err error
	)
	switch v := f[key].(type) {
	case json.Number:
		out, err = v.Int64()
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		out = int64(v)
	case string:
		out, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &out
}

func (f fields) bool(key string) *bool {
	var out bool
	switch v := f[key].(type) {
	case bool:
		out = v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		out = parsed
	default:
		return nil
	}
	return &out
}

func (f fields) object(key string) map[string]any {
	v, _ := f[key].(map[string]any)
	if len(v) == 0 {
		return nil
	}
	return v
}

// details picks the displayable subset of the merged payload.
func (f fields) details() domain.Details {
	d := domain.Details{
		Language:         f.str("language"),
		ReturnURL:        f.str("return_url"),
		PaymentProvider:  f.str("payment_provider"),
		DelayedCapture:   f.bool("delayed_capture"),
		RefundedBy:       f.str("refunded_by"),
		ExternalMetadata: f.object("external_metadata"),
	}
	address := domain.BillingAddress{
		Line1:    f.str("address_line1"),
		Line2:    f.str("address_line2"),
		Postcode: f.str("address_postcode"),
		City:     f.str("address_city"),
		County:   f.str("address_county"),
		Country:  f.str("address_country"),
	}
	if !address.IsZero() {
		d.BillingAddress = &address
	}
	return d
}
