package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gwi.com/analyst-assistant/internal/api"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/config"
	"gwi.com/analyst-assistant/internal/core"
	"gwi.com/analyst-assistant/internal/history"
	"gwi.com/analyst-assistant/internal/logging"
	"gwi.com/analyst-assistant/internal/mirror"
	"gwi.com/analyst-assistant/internal/store"
)

var secureCookies bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&secureCookies, "secure-cookies", false, "mark session cookies Secure (serve behind HTTPS)")
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer st.Close()

	logs := mirror.New(st, cfg.MirrorTimeout, logger.Named("mirror"))
	newHistory := func(identity string) *history.Log {
		return history.NewLog(history.WithMirror(func(ex history.Exchange) {
			logs.ChatExchange(identity, ex.Question, ex.Answer)
		}))
	}

	gateway, closeGateway, err := newGateway(ctx, cfg, logger.Named("gateway"))
	if err != nil {
		return err
	}
	defer closeGateway()

	pipeline := core.NewPipeline(gateway, logs, logger.Named("pipeline"))
	sessions := auth.NewRegistry(st, newHistory, cfg.SessionTTL, logger.Named("session"),
		auth.WithAnonymousTTL(cfg.AnonymousTTL),
	)
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	handler := api.NewHandler(sessions, tokens, pipeline, logger.Named("api"), api.WithSecureCookies(secureCookies))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(handler, logger.Named("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second, // completion calls hold the response
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("provider", cfg.CompletionProvider),
			zap.String("model", cfg.CompletionModel),
			zap.String("store", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := logs.Flush(shutdownCtx); err != nil {
			logger.Warn("pending log writes abandoned", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited gracefully")
	return nil
}

func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.Gateway, func(), error) {
	switch cfg.CompletionProvider {
	case config.ProviderGemini:
		gw, err := core.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.CompletionModel, cfg.CompletionTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw.Close, nil
	default:
		gw := core.NewOpenRouterGateway(core.OpenRouterConfig{
			APIKey:   cfg.OpenRouterAPIKey,
			URL:      cfg.CompletionURL,
			Model:    cfg.CompletionModel,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  cfg.CompletionTimeout,
		}, logger)
		return gw, func() {}, nil
	}
}
