// Package mpesa talks to the Safaricom Daraja API: OAuth token generation
// and STK push submission, plus the typed callback envelope the gateway
// posts back.
package mpesa

import (
	"net/http"
	"sync"
	"time"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"
)

// BaseURL picks the gateway host for the configured environment. Anything
// other than "production" is treated as sandbox.
func BaseURL(env string) string {
	if env == "production" {
		return productionBaseURL
	}
	return sandboxBaseURL
}

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	BaseURL        string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}
