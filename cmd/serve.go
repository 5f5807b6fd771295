package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/relayd/internal/adapters/bot"
	"github.com/bnema/relayd/internal/adapters/bot/telegram"
	"github.com/bnema/relayd/internal/adapters/httpapi"
	"github.com/bnema/relayd/internal/adapters/transport/wsgateway"
	"github.com/bnema/relayd/internal/application"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session supervisor, bot, and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, app)
		},
	}
}

func runServe(ctx context.Context, app *app) error {
	cfg := app.cfg
	logger := app.logger

	transport, err := wsgateway.New(wsgateway.Config{URL: cfg.Gateway.URL, Token: cfg.Gateway.Token}, logger.Named("gateway"))
	if err != nil {
		return fmt.Errorf("wire gateway transport: %w", err)
	}

	ledger, err := app.ledger()
	if err != nil {
		return err
	}

	registry := application.NewRegistry()
	supervisor := application.NewSupervisor(application.SupervisorDeps{
		Transport:   transport,
		Credentials: app.credentialStore(),
		Ledger:      ledger,
		Registry:    registry,
		Clock:       app.clock,
		Logger:      logger.Named("supervisor"),
	}, cfg.Supervisor)
	relay := application.NewRelayService(registry, cfg.Relay, logger.Named("relay"))

	audit := application.LogReporter{Logger: logger.Named("session")}
	replayReporter := application.Reporters{audit}

	var tg *telegram.Bot
	if cfg.Telegram.Enabled() {
		tg, err = telegram.New(cfg.Telegram.Token, logger.Named("telegram"))
		if err != nil {
			return err
		}
		replayReporter = append(replayReporter, bot.NewOperatorNotifier(tg, cfg.Telegram.OperatorID, logger.Named("notify")))
	} else {
		logger.Warn("telegram token not set, pairing is only reachable through replay")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return supervisor.Replay(gctx, replayReporter)
	})

	if cfg.HTTP.Addr != "" {
		if len(cfg.HTTP.Tokens) == 0 {
			logger.Warn("http.tokens is empty, every /api request will be refused")
		}
		server := httpapi.NewServer(httpapi.Config{Addr: cfg.HTTP.Addr, Tokens: cfg.HTTP.Tokens}, supervisor, relay, logger.Named("http"))
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}

	if tg != nil {
		handler := bot.NewHandler(supervisor, tg, cfg.Telegram.OperatorID, audit, logger.Named("bot"))
		g.Go(func() error {
			return tg.Run(gctx, handler)
		})
	}

	logger.Info("relayd started",
		zap.String("sessions_dir", cfg.SessionsDir),
		zap.String("ledger", cfg.LedgerPath),
		zap.String("gateway", cfg.Gateway.URL),
	)

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	shutdownErr := supervisor.Shutdown(shutdownCtx)

	logger.Info("relayd stopped")
	return errors.Join(runErr, shutdownErr)
}
