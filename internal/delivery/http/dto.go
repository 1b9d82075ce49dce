package httpd

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Brownred/mpesa-callback-stk-push/internal/domain"
	"github.com/Brownred/mpesa-callback-stk-push/internal/mpesa"
)

type InitiateReq struct {
	PhoneNumber      string          `json:"phoneNumber" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	ProductID        string          `json:"productId" validate:"required"`
	AccountReference string          `json:"accountReference"`
	TransactionDesc  string          `json:"transactionDesc"`
}

type InitiateResp struct {
	Success         bool                   `json:"success"`
	Message         string                 `json:"message"`
	Transaction     TxItem                 `json:"transaction"`
	StkPushResponse *mpesa.STKPushResponse `json:"stkPushResponse"`
}

type CallbackResp struct {
	Success     bool   `json:"success"`
	Transaction TxItem `json:"transaction"`
}

type HealthResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TxItem struct {
	CheckoutRequestID string     `json:"checkoutRequestId"`
	MerchantRequestID string     `json:"merchantRequestId"`
	ProductID         string     `json:"productId"`
	PhoneNumber       string     `json:"phoneNumber"`
	Amount            string     `json:"amount"`
	Status            string     `json:"status"`
	ResultCode        *int       `json:"resultCode"`
	ResultDesc        *string    `json:"resultDesc"`
	ReceiptNumber     *string    `json:"receiptNumber"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

func toTxItem(t domain.Transaction) TxItem {
	return TxItem{
		CheckoutRequestID: t.CheckoutRequestID,
		MerchantRequestID: t.MerchantRequestID,
		ProductID:         t.ProductID,
		PhoneNumber:       t.PhoneNumber,
		Amount:            t.Amount.String(),
		Status:            string(t.Status),
		ResultCode:        t.ResultCode,
		ResultDesc:        t.ResultDesc,
		ReceiptNumber:     t.ReceiptNumber,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}
