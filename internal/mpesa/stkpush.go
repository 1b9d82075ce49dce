package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Gateway field-length limits. Longer values are truncated, not rejected.
const (
	maxAccountReferenceLen = 12
	maxTransactionDescLen  = 13
)

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush submits a payment prompt to the customer's phone and returns the
// gateway's acknowledgement. The push is asynchronous: the terminal result
// arrives later on the configured callback URL.
func (c *Client) STKPush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference, transactionDesc string) (*STKPushResponse, error) {
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount is required")
	}

	if accountReference == "" {
		accountReference = "Payment"
	}
	if transactionDesc == "" {
		transactionDesc = "Payment"
	}

	timestamp := c.now().Format("20060102150405")
	body := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Round(0).IntPart(),
		PartyA:            NormalizePhone(phoneNumber),
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       NormalizePhone(phoneNumber),
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(accountReference, maxAccountReferenceLen),
		TransactionDesc:   truncate(transactionDesc, maxTransactionDescLen),
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stk push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stk push request failed: %d %s", resp.StatusCode, string(respBody))
	}

	var out STKPushResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode stk push response: %w", err)
	}

	return &out, nil
}

// NormalizePhone converts a local number to the 254-prefixed form the
// gateway expects. Numbers already carrying the prefix pass through
// unchanged; otherwise leading zeros are stripped and the prefix prepended.
func NormalizePhone(phone string) string {
	if strings.HasPrefix(phone, "254") {
		return phone
	}
	return "254" + strings.TrimLeft(phone, "0")
}

func password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
