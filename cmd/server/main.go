package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/adapter/in_memory"
	"github.com/olyamironova/spot-exchange/internal/adapter/kafka"
	"github.com/olyamironova/spot-exchange/internal/adapter/pebble"
	"github.com/olyamironova/spot-exchange/internal/adapter/pg"
	"github.com/olyamironova/spot-exchange/internal/adapter/redis"
	exgrpc "github.com/olyamironova/spot-exchange/internal/api/grpc"
	exhttp "github.com/olyamironova/spot-exchange/internal/api/http"
	"github.com/olyamironova/spot-exchange/internal/config"
	"github.com/olyamironova/spot-exchange/internal/core"
	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/logging"
	"github.com/olyamironova/spot-exchange/internal/port"
)

type ledger interface {
	port.Ledger
	Close() error
}

func main() {
	envPath := flag.String("env", "", "path to .env file (default: ./.env if present)")
	flag.Parse()

	cfg := config.LoadFromEnv(*envPath)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logFailure(logger, err)
		os.Exit(1)
	}
	logger.Info("gracefully shutdown")
}

// logFailure flushes explicitly because os.Exit skips deferred calls.
func logFailure(logger *zap.Logger, err error) {
	logger.Error("server stopped", zap.Error(err))
	_ = logger.Sync()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	led, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer led.Close()
	logger.Info("ledger ready", zap.String("backend", cfg.Ledger.Backend))

	var journal port.Journal = in_memory.NewJournal()
	if cfg.Journal.PostgresURL != "" {
		pgJournal, err := pg.NewPgJournal(ctx, cfg.Journal.PostgresURL)
		if err != nil {
			return err
		}
		defer pgJournal.Close(ctx)
		if err := pgJournal.InitSchema(ctx); err != nil {
			return err
		}
		journal = pgJournal
		logger.Info("journal ready", zap.String("backend", "postgres"))
	}

	feed := exhttp.NewTradeFeed()
	regOpts := []core.RegistryOption{
		core.WithInboxSize(cfg.Exchange.ActorInboxSize),
		core.WithTradePublisher(feed),
		core.WithPublishQueue(cfg.Exchange.PublishQueueSize),
		core.WithPublishTimeout(cfg.Exchange.PublishTimeout),
		core.WithRegistryLogger(logger),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		regOpts = append(regOpts, core.WithTradePublisher(producer))
		logger.Info("publishing trades to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// stopped before the producer closes so queued trades are still written
	registry := core.NewRegistry(regOpts...)
	defer registry.Shutdown()
	eng := core.NewEngine(registry, led,
		core.WithJournal(journal),
		core.WithCurrencies(domain.NewCurrencies(cfg.Exchange.Currencies...)),
		core.WithLogger(logger),
	)

	api := exhttp.NewHTTPServer(eng, feed,
		exhttp.WithLogger(logger),
		exhttp.WithRateLimit(cfg.Server.RateLimit),
	)
	handler := http.Handler(api.Router())
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-User-ID"},
		}).Handler(handler)
	}
	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler,
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcStop func()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gsrv := exgrpc.NewGRPCServer(eng, logger).NewServer()
		grpcStop = gsrv.GracefulStop
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := gsrv.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if grpcStop != nil {
		grpcStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func openLedger(ctx context.Context, cfg config.Ledger) (ledger, error) {
	switch cfg.Backend {
	case config.LedgerMemory:
		return in_memory.NewLedger(), nil
	case config.LedgerRedis:
		l := redis.NewLedger(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := l.Ping(ctx); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("redis ledger at %s: %w", cfg.RedisAddr, err)
		}
		return l, nil
	case config.LedgerPebble:
		l, err := pebble.Open(cfg.PebblePath)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
