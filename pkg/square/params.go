package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// delayActionCancel voids an uncompleted authorization when its hold window lapses.
const delayActionCancel = "CANCEL"

// PaymentCreateParams carries an authorize request for Square.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	// Autocomplete false leaves the payment APPROVED until CompletePayment.
	Autocomplete bool
	// DelayDuration is an RFC 3339 duration bounding how long a manual-capture
	// authorization is held; empty keeps Square's default.
	DelayDuration string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := p.Autocomplete
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     optional(p.LocationID),
		CustomerID:     optional(p.CustomerID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
		AmountMoney:    money(p.AmountMinor, p.Currency),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
	}
	if !autocomplete {
		req.DelayAction = optional(delayActionCancel)
		req.DelayDuration = optional(p.DelayDuration)
	}
	return req
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// money returns nil for a zero amount. An empty currency is left unset so
// Square applies the location's currency.
func money(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	m := &sq.Money{Amount: &amount}
	if code := strings.ToUpper(strings.TrimSpace(currency)); code != "" {
		c := sq.Currency(code)
		m.Currency = &c
	}
	return m
}
