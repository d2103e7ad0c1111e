package operations

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

// RecurringDetails is the billing connector mandate kept on the intent so the
// recovery workflow can retry without the customer.
type RecurringDetails struct {
	Connector           string                    `json:"connector"`
	MerchantConnectorID string                    `json:"merchant_connector_id"`
	PaymentMethod       *connectors.PaymentMethod `json:"payment_method,omitempty"`
}

type FeatureMetadata struct {
	Recurring *RecurringDetails `json:"recurring,omitempty"`
}

func ParseFeatureMetadata(raw datatypes.JSON) (FeatureMetadata, error) {
	var meta FeatureMetadata
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode feature metadata")
	}
	return meta, nil
}

func (m FeatureMetadata) JSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode feature metadata")
	}
	return datatypes.JSON(raw), nil
}
