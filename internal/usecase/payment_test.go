package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Brownred/mpesa-callback-stk-push/internal/domain"
	"github.com/Brownred/mpesa-callback-stk-push/internal/mpesa"
	"github.com/Brownred/mpesa-callback-stk-push/internal/usecase"
)

type mockGateway struct {
	stkPushFn func(ctx context.Context, phone string, amount decimal.Decimal, ref, desc string) (*mpesa.STKPushResponse, error)
	calls     int
}

func (m *mockGateway) STKPush(ctx context.Context, phone string, amount decimal.Decimal, ref, desc string) (*mpesa.STKPushResponse, error) {
	m.calls++
	if m.stkPushFn != nil {
		return m.stkPushFn(ctx, phone, amount, ref, desc)
	}
	return &mpesa.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type mockRepo struct {
	insertFn   func(ctx context.Context, t *domain.Transaction) error
	getFn      func(ctx context.Context, id string) (*domain.Transaction, error)
	finalizeFn func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error

	inserted *domain.Transaction
}

func (m *mockRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	m.inserted = t
	if m.insertFn != nil {
		return m.insertFn(ctx, t)
	}
	return nil
}

func (m *mockRepo) GetByCheckoutRequestID(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &domain.Transaction{CheckoutRequestID: id, Status: domain.StatusPending}, nil
}

func (m *mockRepo) Finalize(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
	if m.finalizeFn != nil {
		return m.finalizeFn(ctx, res, status, at)
	}
	return nil
}

func TestInitiatePaymentValidation(t *testing.T) {
	cases := []struct {
		name string
		in   usecase.InitiateInput
		want error
	}{
		{"missing phone", usecase.InitiateInput{ProductID: "p1", Amount: decimal.NewFromInt(10)}, domain.ErrPhoneRequired},
		{"zero amount", usecase.InitiateInput{ProductID: "p1", PhoneNumber: "0712345678"}, domain.ErrAmountRequired},
		{"negative amount", usecase.InitiateInput{ProductID: "p1", PhoneNumber: "0712345678", Amount: decimal.NewFromInt(-5)}, domain.ErrAmountRequired},
		{"missing product", usecase.InitiateInput{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(10)}, domain.ErrProductRequired},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gw := &mockGateway{}
			repo := &mockRepo{}
			uc := usecase.NewPaymentUsecase(gw, repo)

			_, _, err := uc.InitiatePayment(context.Background(), c.in)
			if !errors.Is(err, c.want) {
				t.Fatalf("err = %v, want %v", err, c.want)
			}
			if gw.calls != 0 {
				t.Error("gateway called despite invalid input")
			}
			if repo.inserted != nil {
				t.Error("transaction persisted despite invalid input")
			}
		})
	}
}

func TestInitiatePaymentPersistsPending(t *testing.T) {
	gw := &mockGateway{}
	repo := &mockRepo{}
	uc := usecase.NewPaymentUsecase(gw, repo)

	tx, resp, err := uc.InitiatePayment(context.Background(), usecase.InitiateInput{
		ProductID:   "p1",
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	if tx.CheckoutRequestID != resp.CheckoutRequestID {
		t.Errorf("stored checkout id %q != gateway id %q", tx.CheckoutRequestID, resp.CheckoutRequestID)
	}
	if tx.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", tx.Status)
	}
	if tx.PhoneNumber != "254712345678" {
		t.Errorf("phone = %q, want normalized 254712345678", tx.PhoneNumber)
	}
	if repo.inserted == nil {
		t.Fatal("transaction not persisted")
	}
}

func TestInitiatePaymentGatewayFailureLeavesNoState(t *testing.T) {
	gw := &mockGateway{
		stkPushFn: func(ctx context.Context, phone string, amount decimal.Decimal, ref, desc string) (*mpesa.STKPushResponse, error) {
			return nil, errors.New("stk push request failed: 500")
		},
	}
	repo := &mockRepo{}
	uc := usecase.NewPaymentUsecase(gw, repo)

	_, _, err := uc.InitiatePayment(context.Background(), usecase.InitiateInput{
		ProductID:   "p1",
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(100),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if repo.inserted != nil {
		t.Error("transaction persisted despite gateway failure")
	}
}

func successCallback(receipt any) *mpesa.StkCallback {
	return &mpesa.StkCallback{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{
			Item: []mpesa.MetadataItem{
				{Name: "Amount", Value: float64(100)},
				{Name: "MpesaReceiptNumber", Value: receipt},
			},
		},
	}
}

func TestReconcileCallbackSuccess(t *testing.T) {
	var captured domain.CallbackResult
	var capturedStatus domain.TxStatus

	repo := &mockRepo{
		finalizeFn: func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
			captured = res
			capturedStatus = status
			return nil
		},
		getFn: func(ctx context.Context, id string) (*domain.Transaction, error) {
			receipt := "ABC123"
			return &domain.Transaction{CheckoutRequestID: id, Status: domain.StatusSuccess, ReceiptNumber: &receipt}, nil
		},
	}
	uc := usecase.NewPaymentUsecase(&mockGateway{}, repo)

	tx, err := uc.ReconcileCallback(context.Background(), successCallback("ABC123"))
	if err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}

	if capturedStatus != domain.StatusSuccess {
		t.Errorf("finalized status = %s, want SUCCESS", capturedStatus)
	}
	if captured.ReceiptNumber == nil || *captured.ReceiptNumber != "ABC123" {
		t.Errorf("receipt = %v, want ABC123", captured.ReceiptNumber)
	}
	if tx.Status != domain.StatusSuccess {
		t.Errorf("returned status = %s, want SUCCESS", tx.Status)
	}
}

func TestReconcileCallbackSuccessWithoutReceipt(t *testing.T) {
	var captured domain.CallbackResult

	repo := &mockRepo{
		finalizeFn: func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
			captured = res
			return nil
		},
	}
	uc := usecase.NewPaymentUsecase(&mockGateway{}, repo)

	cb := successCallback("ABC123")
	cb.CallbackMetadata = nil

	if _, err := uc.ReconcileCallback(context.Background(), cb); err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}
	if captured.ReceiptNumber != nil {
		t.Errorf("receipt = %v, want nil when metadata absent", captured.ReceiptNumber)
	}
}

func TestReconcileCallbackFailedResult(t *testing.T) {
	var captured domain.CallbackResult
	var capturedStatus domain.TxStatus

	repo := &mockRepo{
		finalizeFn: func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
			captured = res
			capturedStatus = status
			return nil
		},
	}
	uc := usecase.NewPaymentUsecase(&mockGateway{}, repo)

	cb := successCallback("ABC123")
	cb.ResultCode = 1032
	cb.ResultDesc = "Request cancelled by user"

	if _, err := uc.ReconcileCallback(context.Background(), cb); err != nil {
		t.Fatalf("ReconcileCallback: %v", err)
	}

	if capturedStatus != domain.StatusFailed {
		t.Errorf("finalized status = %s, want FAILED", capturedStatus)
	}
	if captured.ReceiptNumber != nil {
		t.Error("receipt set on failed result despite metadata presence")
	}
	if captured.ResultCode != 1032 || captured.ResultDesc != "Request cancelled by user" {
		t.Errorf("result fields not carried: %+v", captured)
	}
}

func TestReconcileCallbackDuplicate(t *testing.T) {
	repo := &mockRepo{
		finalizeFn: func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
			return domain.ErrAlreadyFinalized
		},
		getFn: func(ctx context.Context, id string) (*domain.Transaction, error) {
			return &domain.Transaction{CheckoutRequestID: id, Status: domain.StatusSuccess}, nil
		},
	}
	uc := usecase.NewPaymentUsecase(&mockGateway{}, repo)

	tx, err := uc.ReconcileCallback(context.Background(), successCallback("ABC123"))
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("err = %v, want ErrAlreadyFinalized", err)
	}
	if tx == nil || tx.Status != domain.StatusSuccess {
		t.Error("duplicate reconcile should return the stored terminal transaction")
	}
}

func TestReconcileCallbackUnknownID(t *testing.T) {
	repo := &mockRepo{
		finalizeFn: func(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
			return domain.ErrNotFound
		},
	}
	uc := usecase.NewPaymentUsecase(&mockGateway{}, repo)

	_, err := uc.ReconcileCallback(context.Background(), successCallback("ABC123"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
