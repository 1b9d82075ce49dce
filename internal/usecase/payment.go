package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Brownred/mpesa-callback-stk-push/internal/domain"
	"github.com/Brownred/mpesa-callback-stk-push/internal/mpesa"
)

// Gateway is the outbound side: submit a push, get the gateway's
// acknowledgement with its correlation ids.
type Gateway interface {
	STKPush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference, transactionDesc string) (*mpesa.STKPushResponse, error)
}

// TransactionRepo is the persistence side. Finalize must be conditional on
// the row still being PENDING and return domain.ErrAlreadyFinalized when it
// is not, domain.ErrNotFound when the id is unknown.
type TransactionRepo interface {
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error)
	Finalize(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error
}

type PaymentUsecase struct {
	gateway Gateway
	repo    TransactionRepo
	now     func() time.Time
}

func NewPaymentUsecase(gw Gateway, repo TransactionRepo) *PaymentUsecase {
	return &PaymentUsecase{gateway: gw, repo: repo, now: time.Now}
}

type InitiateInput struct {
	ProductID        string
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

// InitiatePayment submits the push to the gateway and, only after the
// gateway acknowledges, records a PENDING transaction keyed by the
// returned CheckoutRequestID. A gateway failure leaves no state behind.
func (u *PaymentUsecase) InitiatePayment(ctx context.Context, in InitiateInput) (*domain.Transaction, *mpesa.STKPushResponse, error) {
	if in.PhoneNumber == "" {
		return nil, nil, domain.ErrPhoneRequired
	}
	if !in.Amount.IsPositive() {
		return nil, nil, domain.ErrAmountRequired
	}
	if in.ProductID == "" {
		return nil, nil, domain.ErrProductRequired
	}

	resp, err := u.gateway.STKPush(ctx, in.PhoneNumber, in.Amount, in.AccountReference, in.TransactionDesc)
	if err != nil {
		return nil, nil, err
	}

	tx := &domain.Transaction{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		ProductID:         in.ProductID,
		PhoneNumber:       mpesa.NormalizePhone(in.PhoneNumber),
		Amount:            in.Amount,
		Status:            domain.StatusPending,
		CreatedAt:         u.now(),
	}

	if err := u.repo.InsertTransaction(ctx, tx); err != nil {
		return nil, nil, err
	}

	return tx, resp, nil
}

// ReconcileCallback finalizes the pending transaction named by the
// gateway's callback. Result code 0 maps to SUCCESS with the receipt
// number pulled from metadata; anything else maps to FAILED. A duplicate
// callback returns the stored transaction with ErrAlreadyFinalized instead
// of overwriting the terminal state.
func (u *PaymentUsecase) ReconcileCallback(ctx context.Context, cb *mpesa.StkCallback) (*domain.Transaction, error) {
	res := domain.CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	status := res.Status()
	if status == domain.StatusSuccess {
		res.ReceiptNumber = cb.ReceiptNumber()
	}

	if err := u.repo.Finalize(ctx, res, status, u.now()); err != nil {
		if err == domain.ErrAlreadyFinalized {
			tx, getErr := u.repo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
			if getErr != nil {
				return nil, getErr
			}
			return tx, domain.ErrAlreadyFinalized
		}
		return nil, err
	}

	return u.repo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
}
