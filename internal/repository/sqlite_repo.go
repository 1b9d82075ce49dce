package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Brownred/mpesa-callback-stk-push/internal/domain"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA foreign_keys = ON;")
	db.Exec("PRAGMA journal_mode = WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")

	r := &SQLiteRepo{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkout_request_id TEXT NOT NULL UNIQUE,
			merchant_request_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			amount TEXT NOT NULL,
			status TEXT NOT NULL,
			result_code INTEGER,
			result_desc TEXT,
			receipt_number TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tx_checkout_request_id ON transactions(checkout_request_id);
		CREATE INDEX IF NOT EXISTS idx_tx_phone_number ON transactions(phone_number);
		CREATE INDEX IF NOT EXISTS idx_tx_product ON transactions(product_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	q := `
		INSERT INTO transactions(
			checkout_request_id,
			merchant_request_id,
			product_id,
			phone_number,
			amount,
			status,
			result_code,
			result_desc,
			receipt_number,
			created_at,
			updated_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := r.db.ExecContext(
		ctx, q,
		t.CheckoutRequestID,
		t.MerchantRequestID,
		t.ProductID,
		t.PhoneNumber,
		t.Amount.String(),
		string(t.Status),
		nil,
		nil,
		nil,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		nil,
	)

	return err
}

func (r *SQLiteRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error) {
	q := selectColumns + ` FROM transactions WHERE checkout_request_id = ?`

	row := r.db.QueryRowContext(ctx, q, checkoutRequestID)
	t, err := scanTx(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Finalize moves a pending transaction to its terminal state. The update is
// conditional on status = PENDING, so a duplicate or racing callback can
// never overwrite a terminal state: the first terminal write wins and later
// ones see ErrAlreadyFinalized.
func (r *SQLiteRepo) Finalize(ctx context.Context, res domain.CallbackResult, status domain.TxStatus, at time.Time) error {
	q := `
		UPDATE transactions
		SET status = ?,
			result_code = ?,
			result_desc = ?,
			receipt_number = ?,
			merchant_request_id = ?,
			updated_at = ?
		WHERE checkout_request_id = ? AND status = ?
	`

	var receipt any = nil
	if res.ReceiptNumber != nil {
		receipt = *res.ReceiptNumber
	}

	out, err := r.db.ExecContext(
		ctx, q,
		string(status),
		res.ResultCode,
		res.ResultDesc,
		receipt,
		res.MerchantRequestID,
		at.UTC().Format(time.RFC3339Nano),
		res.CheckoutRequestID,
		string(domain.StatusPending),
	)
	if err != nil {
		return err
	}

	aff, _ := out.RowsAffected()
	if aff == 0 {
		// Distinguish an unknown id from an already-terminal row.
		if _, err := r.GetByCheckoutRequestID(ctx, res.CheckoutRequestID); err != nil {
			return err
		}
		return domain.ErrAlreadyFinalized
	}

	return nil
}

type TxFilter struct {
	PhoneNumber string
	ProductID   string
	Status      domain.TxStatus
}

func (r *SQLiteRepo) ListTransactions(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	q := selectColumns + ` FROM transactions WHERE 1 = 1`
	args := []any{}

	if f.PhoneNumber != "" {
		q += " AND phone_number = ?"
		args = append(args, f.PhoneNumber)
	}

	if f.ProductID != "" {
		q += " AND product_id = ?"
		args = append(args, f.ProductID)
	}

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}

	q += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}

		res = append(res, *t)
	}

	return res, rows.Err()
}

const selectColumns = `
	SELECT
		id,
		checkout_request_id,
		merchant_request_id,
		product_id,
		phone_number,
		amount,
		status,
		result_code,
		result_desc,
		receipt_number,
		created_at,
		updated_at`

func scanTx(scanner interface {
	Scan(dest ...any) error
}) (*domain.Transaction, error) {
	var t domain.Transaction
	var status string
	var amountStr string
	var createdStr string
	var updatedStr *string

	if err := scanner.Scan(
		&t.ID,
		&t.CheckoutRequestID,
		&t.MerchantRequestID,
		&t.ProductID,
		&t.PhoneNumber,
		&amountStr,
		&status,
		&t.ResultCode,
		&t.ResultDesc,
		&t.ReceiptNumber,
		&createdStr,
		&updatedStr,
	); err != nil {
		return nil, err
	}

	t.Status = domain.TxStatus(status)

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.Amount = amount

	created, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created time: %w", err)
	}
	t.CreatedAt = created

	if updatedStr != nil {
		upd, err := time.Parse(time.RFC3339Nano, *updatedStr)
		if err != nil {
			return nil, fmt.Errorf("parse updated time: %w", err)
		}
		t.UpdatedAt = &upd
	}

	return &t, nil
}
