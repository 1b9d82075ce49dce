package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Brownred/mpesa-callback-stk-push/internal/config"
	httpd "github.com/Brownred/mpesa-callback-stk-push/internal/delivery/http"
	"github.com/Brownred/mpesa-callback-stk-push/internal/mpesa"
	"github.com/Brownred/mpesa-callback-stk-push/internal/repository"
	"github.com/Brownred/mpesa-callback-stk-push/internal/usecase"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	repo, err := repository.NewSQLiteRepo(cfg.SQLiteDSN)
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	gateway := mpesa.NewClient(mpesa.Config{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Shortcode:      cfg.Shortcode,
		Passkey:        cfg.Passkey,
		CallbackURL:    cfg.CallbackURL,
		BaseURL:        mpesa.BaseURL(cfg.Environment),
	})

	uc := usecase.NewPaymentUsecase(gateway, repo)
	h := httpd.NewHandler(uc, repo)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("server listening", "addr", srv.Addr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
