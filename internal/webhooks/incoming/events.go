package incoming

import (
	"strconv"
	"strings"
)

// Notification is a connector event reduced to the payment it refers to.
type Notification struct {
	Connector     string
	EventID       string
	EventType     string
	TransactionID string
}

// SquareEvent is the envelope Square posts for payment.* notifications.
type SquareEvent struct {
	MerchantID string `json:"merchant_id"`
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	Data       struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment *struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// Notification returns false for events that carry no payment.
func (e SquareEvent) Notification() (Notification, bool) {
	eventType := strings.ToLower(strings.TrimSpace(e.Type))
	if !strings.HasPrefix(eventType, "payment.") {
		return Notification{}, false
	}
	txnID := strings.TrimSpace(e.Data.ID)
	if p := e.Data.Object.Payment; p != nil && strings.TrimSpace(p.ID) != "" {
		txnID = strings.TrimSpace(p.ID)
	}
	if txnID == "" {
		return Notification{}, false
	}
	return Notification{
		Connector:     "square",
		EventID:       strings.TrimSpace(e.EventID),
		EventType:     eventType,
		TransactionID: txnID,
	}, true
}

// MercadoPagoEvent is the v2 webhook body; data.id is the payment id.
type MercadoPagoEvent struct {
	ID     flexibleID `json:"id"`
	Type   string     `json:"type"`
	Action string     `json:"action"`
	Data   struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
}

func (e MercadoPagoEvent) Notification() (Notification, bool) {
	if !strings.EqualFold(strings.TrimSpace(e.Type), "payment") {
		return Notification{}, false
	}
	txnID := string(e.Data.ID)
	if txnID == "" {
		return Notification{}, false
	}
	eventID := string(e.ID)
	if eventID == "" {
		eventID = e.Action + ":" + txnID
	}
	return Notification{
		Connector:     "mercadopago",
		EventID:       eventID,
		EventType:     strings.TrimSpace(e.Action),
		TransactionID: txnID,
	}, true
}

// flexibleID accepts ids sent either as JSON numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*f = flexibleID(strings.TrimSpace(raw))
	return nil
}
