package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type TxStatus string

const (
	StatusPending TxStatus = "PENDING"
	StatusSuccess TxStatus = "SUCCESS"
	StatusFailed  TxStatus = "FAILED"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrAlreadyFinalized = errors.New("transaction already finalized")

	ErrPhoneRequired   = errors.New("phoneNumber is required")
	ErrAmountRequired  = errors.New("amount must be greater than zero")
	ErrProductRequired = errors.New("productId is required")
)

// Transaction is keyed by the gateway-issued CheckoutRequestID. Result
// fields stay nil until the gateway's asynchronous callback finalizes the
// record; ReceiptNumber is only ever set on SUCCESS.
type Transaction struct {
	ID                int64
	CheckoutRequestID string
	MerchantRequestID string
	ProductID         string
	PhoneNumber       string
	Amount            decimal.Decimal
	Status            TxStatus
	ResultCode        *int
	ResultDesc        *string
	ReceiptNumber     *string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// CallbackResult carries the fields extracted from a gateway callback that
// finalize a pending transaction.
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     *string
}

// Status maps the gateway result code to a terminal state: 0 means the
// customer approved the push, anything else is a failure.
func (r CallbackResult) Status() TxStatus {
	if r.ResultCode == 0 {
		return StatusSuccess
	}
	return StatusFailed
}
