package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	AppPort   string
	SQLiteDSN string

	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Environment    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment once at startup. The gateway credentials have
// no sensible defaults, so missing keys fail here rather than on the first
// initiate request.
func Load() (Config, error) {
	cfg := Config{
		AppPort:        getenv("PORT", "8080"),
		SQLiteDSN:      getenv("SQLITE_DSN", "./app.db"),
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		Environment:    getenv("MPESA_ENV", "sandbox"),
	}

	var missing []string
	for _, kv := range []struct{ key, val string }{
		{"MPESA_CONSUMER_KEY", cfg.ConsumerKey},
		{"MPESA_CONSUMER_SECRET", cfg.ConsumerSecret},
		{"MPESA_SHORTCODE", cfg.Shortcode},
		{"MPESA_PASSKEY", cfg.Passkey},
		{"MPESA_CALLBACK_URL", cfg.CallbackURL},
	} {
		if kv.val == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
