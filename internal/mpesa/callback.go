package mpesa

// CallbackEnvelope is the payload the gateway posts to the callback URL.
// The nesting is fixed by the Daraja API.
type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values are heterogeneous on the wire: amounts arrive as
// numbers, receipt numbers and phone numbers as strings.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Valid reports whether the envelope carries the nested stkCallback
// structure. Anything else is malformed client data.
func (e *CallbackEnvelope) Valid() bool {
	return e != nil && e.Body != nil && e.Body.StkCallback != nil
}

// ReceiptNumber returns the value of the first metadata item named
// MpesaReceiptNumber, or nil when absent. Metadata is advisory: a missing
// receipt on a successful result is not an error.
func (c *StkCallback) ReceiptNumber() *string {
	if c.CallbackMetadata == nil {
		return nil
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return &s
			}
			return nil
		}
	}
	return nil
}
