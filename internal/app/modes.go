package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/nexustrade/perpsim/internal/blob/s3"
	"github.com/nexustrade/perpsim/internal/domain"
	"github.com/nexustrade/perpsim/internal/engine"
	"github.com/nexustrade/perpsim/internal/server"
	"github.com/nexustrade/perpsim/internal/server/handler"
	"github.com/nexustrade/perpsim/internal/server/ws"
	"github.com/nexustrade/perpsim/internal/service"
)

// newEngine builds the simulation engine from the configured parameters.
func (a *App) newEngine(deps *Dependencies) *engine.Engine {
	return engine.New(engine.Config{
		Pair:         a.cfg.Simulation.Pair,
		TickInterval: a.cfg.Simulation.TickInterval.Duration,
		CandleWindow: a.cfg.Simulation.CandleWindow,
		BookDepth:    a.cfg.Simulation.BookDepth,
		BasePrice:    a.cfg.Simulation.BasePrice,
		Seed:         a.cfg.Simulation.Seed,
	}, deps.SignalBus, deps.PriceCache, a.logger)
}

// ServeMode runs the full service: simulation engine, settlement worker,
// WebSocket hub, notification bridge, optional journal archiver, and the
// HTTP API server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.newEngine(deps)
	g.Go(func() error {
		return eng.Run(ctx)
	})

	// Services.
	authSvc := service.NewAuthService(deps.UserStore, a.cfg.Auth.JWTSecret,
		a.cfg.Auth.TokenTTL.Duration, a.logger)
	accountSvc := service.NewAccountService(deps.UserStore, deps.DepositStore,
		deps.WithdrawalStore, a.logger)
	tradeSvc := service.NewTradeService(deps.TradeStore, deps.UserStore, eng, a.logger)

	// Settlement worker completes pending transfers.
	settlement := service.NewSettlementWorker(deps.UserStore, deps.DepositStore,
		deps.WithdrawalStore, a.cfg.Settlement.Delay.Duration,
		a.cfg.Settlement.PollInterval.Duration, a.logger)
	g.Go(func() error {
		return settlement.Run(ctx)
	})

	// WebSocket hub bridges the signal bus to clients.
	hub := ws.NewHub(deps.SignalBus, a.cfg.Simulation.Pair, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Notification bridge forwards journal events to Telegram / Discord.
	g.Go(func() error {
		return a.runNotifyBridge(ctx, deps)
	})

	// Journal archiver drains history overflow to blob storage.
	if a.cfg.Archive.Enabled && deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(deps.BlobWriter, eng,
			a.cfg.Archive.MaxEntries, a.cfg.Archive.Interval.Duration, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	// HTTP server.
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Market:     handler.NewMarketHandler(eng, a.logger),
		Simulation: handler.NewSimulationHandler(eng, a.logger),
		Auth:       handler.NewAuthHandler(authSvc, a.logger),
		Account:    handler.NewAccountHandler(accountSvc, tradeSvc, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, authSvc, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// SimMode runs the simulation engine headless: ticks advance the market and
// events flow to the signal bus and price cache when Redis is configured,
// but no HTTP surface is exposed.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sim mode",
		slog.String("pair", a.cfg.Simulation.Pair),
		slog.Duration("tick_interval", a.cfg.Simulation.TickInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	eng := a.newEngine(deps)
	g.Go(func() error {
		return eng.Run(ctx)
	})

	if deps.SignalBus != nil {
		g.Go(func() error {
			return a.runNotifyBridge(ctx, deps)
		})
	}

	if a.cfg.Archive.Enabled && deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(deps.BlobWriter, eng,
			a.cfg.Archive.MaxEntries, a.cfg.Archive.Interval.Duration, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	return g.Wait()
}

// runNotifyBridge subscribes to the trades channel and forwards journal
// events to the notifier. Events that fail to decode are skipped.
func (a *App) runNotifyBridge(ctx context.Context, deps *Dependencies) error {
	ch, err := deps.SignalBus.Subscribe(ctx, engine.ChannelTrades)
	if err != nil {
		// Notifications are best-effort; the service keeps running.
		a.logger.WarnContext(ctx, "notify bridge: subscribe failed",
			slog.String("error", err.Error()),
		)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope struct {
				Event   string            `json:"event"`
				Payload domain.TradeEvent `json:"payload"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				continue
			}
			if err := deps.Notifier.NotifyTradeEvent(ctx, envelope.Payload); err != nil {
				a.logger.WarnContext(ctx, "notify bridge: delivery failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
